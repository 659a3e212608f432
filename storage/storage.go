package storage

import (
	"context"
	"errors"
	"fmt"
	"io"
	"mime"
	"os"
	"path"
	"path/filepath"
	"sort"
	"strings"
	"time"
)

// PublicPrefix is the URL prefix media files are served under.
const PublicPrefix = "/uploads/"

var (
	// ErrObjectNotFound 对象不存在
	ErrObjectNotFound = errors.New("object not found")
	// ErrInvalidName 非法对象名
	ErrInvalidName = errors.New("invalid object name")
)

// ObjectInfo 文件信息
type ObjectInfo struct {
	Key          string
	Size         int64
	LastModified time.Time
	ContentType  string
}

// Object is an open media file; both os.File and minio.Object satisfy it.
type Object interface {
	io.ReadSeekCloser
}

// Store keeps uploaded media files.
type Store interface {
	// Put moves the file at srcPath into the store under name.
	Put(ctx context.Context, name, srcPath string) error
	Open(ctx context.Context, name string) (Object, *ObjectInfo, error)
	Remove(ctx context.Context, name string) error
	List(ctx context.Context) ([]ObjectInfo, error)
}

// PublicPath returns the client-facing path of an object.
func PublicPath(name string) string {
	return PublicPrefix + name
}

// ObjectName reverses PublicPath. Only flat names are accepted.
func ObjectName(publicPath string) (string, error) {
	name := strings.TrimPrefix(publicPath, PublicPrefix)
	name = strings.TrimPrefix(name, "./uploads/")
	if err := validName(name); err != nil {
		return "", err
	}
	return name, nil
}

func validName(name string) error {
	if name == "" || name == "." || name == ".." || strings.ContainsAny(name, `/\`) {
		return fmt.Errorf("%w: %q", ErrInvalidName, name)
	}
	return nil
}

var mediaTypes = map[string]string{
	".mp3":  "audio/mpeg",
	".m4a":  "audio/mp4",
	".aac":  "audio/aac",
	".ogg":  "audio/ogg",
	".wav":  "audio/wav",
	".flac": "audio/flac",
	".mp4":  "video/mp4",
	".webm": "video/webm",
}

// ContentType guesses a MIME type from the file extension.
func ContentType(name string) string {
	ext := strings.ToLower(path.Ext(name))
	if ct, ok := mediaTypes[ext]; ok {
		return ct
	}
	if ct := mime.TypeByExtension(ext); ct != "" {
		return ct
	}
	return "application/octet-stream"
}

// LocalStore 本地目录存储
type LocalStore struct {
	dir string
}

// NewLocalStore creates dir if needed.
func NewLocalStore(dir string) (*LocalStore, error) {
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("create upload dir %s: %w", dir, err)
	}
	return &LocalStore{dir: dir}, nil
}

// Dir returns the backing directory.
func (s *LocalStore) Dir() string {
	return s.dir
}

func (s *LocalStore) Put(ctx context.Context, name, srcPath string) error {
	if err := validName(name); err != nil {
		return err
	}
	dst := filepath.Join(s.dir, name)
	if err := os.Rename(srcPath, dst); err == nil {
		return nil
	}
	// rename fails across filesystems
	if err := copyFile(srcPath, dst); err != nil {
		return fmt.Errorf("store %s: %w", name, err)
	}
	return os.Remove(srcPath)
}

func (s *LocalStore) Open(ctx context.Context, name string) (Object, *ObjectInfo, error) {
	if err := validName(name); err != nil {
		return nil, nil, err
	}
	f, err := os.Open(filepath.Join(s.dir, name))
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, nil, ErrObjectNotFound
		}
		return nil, nil, err
	}
	st, err := f.Stat()
	if err != nil {
		f.Close()
		return nil, nil, err
	}
	return f, &ObjectInfo{Key: name, Size: st.Size(), LastModified: st.ModTime(), ContentType: ContentType(name)}, nil
}

func (s *LocalStore) Remove(ctx context.Context, name string) error {
	if err := validName(name); err != nil {
		return err
	}
	if err := os.Remove(filepath.Join(s.dir, name)); err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return ErrObjectNotFound
		}
		return err
	}
	return nil
}

func (s *LocalStore) List(ctx context.Context) ([]ObjectInfo, error) {
	entries, err := os.ReadDir(s.dir)
	if err != nil {
		return nil, err
	}
	objects := make([]ObjectInfo, 0, len(entries))
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		info, err := e.Info()
		if err != nil {
			continue
		}
		objects = append(objects, ObjectInfo{
			Key:          e.Name(),
			Size:         info.Size(),
			LastModified: info.ModTime(),
			ContentType:  ContentType(e.Name()),
		})
	}
	sort.Slice(objects, func(i, j int) bool { return objects[i].Key < objects[j].Key })
	return objects, nil
}

func copyFile(src, dst string) error {
	in, err := os.Open(src)
	if err != nil {
		return err
	}
	defer in.Close()

	out, err := os.Create(dst)
	if err != nil {
		return err
	}
	if _, err := io.Copy(out, in); err != nil {
		out.Close()
		os.Remove(dst)
		return err
	}
	return out.Close()
}

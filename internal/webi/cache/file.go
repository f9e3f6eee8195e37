package cache

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"os"
	"path/filepath"
	"time"

	"github.com/pkg/errors"
)

// 文档注释：文件目录缓存
// 背景：跨进程复用已拉取的响应，减轻对远端站点的访问压力；每个键一个 JSON 文件。
// 约束：文件名为键的 SHA-256；写入先落临时文件再原子改名，读到损坏文件按未命中处理并删除。
type FileStore struct {
	dir string
	now func() time.Time
}

func NewFile(dir string) (*FileStore, error) {
	if dir == "" {
		return nil, errors.New("cache dir is empty")
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, errors.Wrapf(err, "create cache dir %s", dir)
	}
	return &FileStore{dir: dir, now: time.Now}, nil
}

func (f *FileStore) Dir() string { return f.dir }

func (f *FileStore) path(k string) string {
	sum := sha256.Sum256([]byte(k))
	return filepath.Join(f.dir, hex.EncodeToString(sum[:])+".json")
}

func (f *FileStore) Get(_ context.Context, k string) (Entry, bool, error) {
	fp := f.path(k)
	b, err := os.ReadFile(fp)
	if errors.Is(err, os.ErrNotExist) {
		return Entry{}, false, nil
	}
	if err != nil {
		return Entry{}, false, errors.Wrap(err, "read cache entry")
	}
	var e Entry
	if err := json.Unmarshal(b, &e); err != nil || e.Expired(f.now()) {
		_ = os.Remove(fp)
		return Entry{}, false, nil
	}
	return e, true, nil
}

func (f *FileStore) Set(_ context.Context, k string, e Entry, ttl time.Duration) error {
	if ttl <= 0 {
		return nil
	}
	e.Expires = f.now().Add(ttl)
	b, err := json.Marshal(e)
	if err != nil {
		return errors.Wrap(err, "encode cache entry")
	}
	tmp, err := os.CreateTemp(f.dir, "entry-*.tmp")
	if err != nil {
		return errors.Wrap(err, "create cache entry")
	}
	if _, err := tmp.Write(b); err != nil {
		tmp.Close()
		os.Remove(tmp.Name())
		return errors.Wrap(err, "write cache entry")
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmp.Name())
		return errors.Wrap(err, "write cache entry")
	}
	return errors.Wrap(os.Rename(tmp.Name(), f.path(k)), "commit cache entry")
}

func (f *FileStore) Delete(_ context.Context, k string) error {
	err := os.Remove(f.path(k))
	if errors.Is(err, os.ErrNotExist) {
		return nil
	}
	return err
}

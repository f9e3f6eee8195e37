package gazetteer

import (
	"fmt"

	"github.com/pkg/errors"

	"pleiades-api/internal/index"
)

var (
	// ErrInvalidConfig 表示构造参数不合法（空 User-Agent、空请求头值、无法解析的配置项）
	ErrInvalidConfig = errors.New("invalid gazetteer configuration")
	// ErrUnknownIndex 同时满足 errors.Is(err, index.ErrInvalidArgument)
	ErrUnknownIndex = errors.Wrap(index.ErrInvalidArgument, "unknown index")
	// ErrMalformedSearchResults 表示检索响应不是可解析的 RSS/Atom
	ErrMalformedSearchResults = errors.New("search results are not a readable feed")
)

// InvalidIdentifierError 表示地名标识格式不合法；在本地判定，不发起任何网络请求
type InvalidIdentifierError struct {
	PID    string
	Reason string
}

func (e *InvalidIdentifierError) Error() string {
	return fmt.Sprintf("invalid place identifier %q: %s", e.PID, e.Reason)
}

// RemoteResourceError 表示解析或拉取的终端响应为非 2xx
type RemoteResourceError struct {
	URI    string
	Status int
	Err    error
}

func (e *RemoteResourceError) Error() string {
	return fmt.Sprintf("remote resource %s: status %d", e.URI, e.Status)
}

func (e *RemoteResourceError) Unwrap() error { return e.Err }

package gazetteer

import (
	"context"
	"net/url"
	"strings"
)

// Resolve 将标识解析为规范 URI：本地校验后发送一次 HEAD 并跟随重定向，返回终端地址
// 约束：解析结果不缓存；每次调用恰好一次探测（另加重定向跳转）
func (g *Gazetteer) Resolve(ctx context.Context, pid string) (string, error) {
	candidate, err := g.candidateURI(pid)
	if err != nil {
		return "", err
	}
	r, err := g.web.Head(ctx, candidate)
	if err != nil {
		g.l.Warn("resolve_error", "pid", pid, "candidate", candidate, "err", err)
		return "", remoteError(candidate, err)
	}
	if r.URL != candidate {
		g.l.Debug("resolve_redirected", "pid", pid, "candidate", candidate, "canonical", r.URL)
	}
	return r.URL, nil
}

// candidateURI 在不访问网络的前提下把标识规整为 <base>/places/<n>
func (g *Gazetteer) candidateURI(pid string) (string, error) {
	pid = strings.TrimSpace(pid)
	if pid == "" {
		return "", &InvalidIdentifierError{PID: pid, Reason: "empty identifier"}
	}
	if digits(pid) {
		return g.base.String() + "/places/" + pid, nil
	}
	u, err := url.Parse(pid)
	if err != nil {
		return "", &InvalidIdentifierError{PID: pid, Reason: "not an integer or a uri"}
	}
	switch {
	case u.Scheme != "http" && u.Scheme != "https":
		return "", &InvalidIdentifierError{PID: pid, Reason: "not an integer or an http(s) uri"}
	case !strings.EqualFold(u.Host, g.base.Host):
		return "", &InvalidIdentifierError{PID: pid, Reason: "host is not " + g.base.Host}
	case u.RawQuery != "" || u.Fragment != "" || u.User != nil:
		return "", &InvalidIdentifierError{PID: pid, Reason: "unexpected query, fragment or userinfo"}
	}
	seg := strings.Split(strings.TrimPrefix(u.Path, "/"), "/")
	if len(seg) != 2 || seg[0] != "places" {
		return "", &InvalidIdentifierError{PID: pid, Reason: "path is not /places/<integer>"}
	}
	if !digits(seg[1]) {
		return "", &InvalidIdentifierError{PID: pid, Reason: "place id is not an integer"}
	}
	return u.Scheme + "://" + u.Host + "/places/" + seg[1], nil
}

func digits(s string) bool {
	if s == "" {
		return false
	}
	for i := 0; i < len(s); i++ {
		if s[i] < '0' || s[i] > '9' {
			return false
		}
	}
	return true
}

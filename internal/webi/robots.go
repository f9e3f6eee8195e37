package webi

import (
	"context"
	"net/http"
	"net/url"
	"time"

	"github.com/pkg/errors"
	"github.com/temoto/robotstxt"
	"golang.org/x/time/rate"

	"pleiades-api/internal/metrics"
)

// 文档注释：单个站点的访问策略
// 背景：robots.txt 按站点拉取一次；Crawl-delay 转换为令牌桶限速（容量 1），保证相邻请求间隔。
// 约束：group 为 nil 表示全部允许；limiter 为 nil 表示不限速。
type hostPolicy struct {
	group   *robotstxt.Group
	limiter *rate.Limiter
}

// admit 在发出请求前执行 robots 判定与限速等待
func (c *Client) admit(ctx context.Context, u *url.URL) error {
	if !c.robots {
		return nil
	}
	p, err := c.policy(ctx, u)
	if err != nil {
		return err
	}
	if p.group != nil && !p.group.Test(u.EscapedPath()) {
		metrics.RobotsDeniedTotal.Inc()
		c.l.Warn("robots_disallowed", "uri", u.String(), "agent", c.UserAgent())
		return errors.Wrap(ErrDisallowed, u.String())
	}
	if p.limiter != nil {
		if err := p.limiter.Wait(ctx); err != nil {
			return errors.Wrap(err, "crawl delay")
		}
	}
	return nil
}

// policy 返回站点策略；首次访问时同步拉取 robots.txt，拉取失败不缓存以便下次重试
func (c *Client) policy(ctx context.Context, u *url.URL) (*hostPolicy, error) {
	key := u.Scheme + "://" + u.Host
	c.mu.Lock()
	defer c.mu.Unlock()
	if p, ok := c.hosts[key]; ok {
		return p, nil
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, key+"/robots.txt", nil)
	if err != nil {
		return nil, errors.Wrap(err, "build robots request")
	}
	if ua := c.UserAgent(); ua != "" {
		req.Header.Set("User-Agent", ua)
	}
	resp, err := c.hc.Do(req)
	if err != nil {
		c.l.Error("robots_fetch_error", "host", u.Host, "err", err)
		return nil, errors.Wrapf(err, "fetch robots.txt for %s", u.Host)
	}
	defer resp.Body.Close()
	data, err := robotstxt.FromResponse(resp)
	if err != nil {
		return nil, errors.Wrapf(err, "parse robots.txt for %s", u.Host)
	}
	p := &hostPolicy{group: data.FindGroup(c.UserAgent())}
	var delay time.Duration
	if p.group != nil {
		delay = p.group.CrawlDelay
	}
	if delay > 0 {
		p.limiter = rate.NewLimiter(rate.Every(delay), 1)
	}
	c.hosts[key] = p
	c.l.Debug("robots_loaded", "host", u.Host, "status", resp.StatusCode, "crawl_delay", delay)
	return p, nil
}

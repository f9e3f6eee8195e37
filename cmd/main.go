// 程序入口：仅负责读取配置、初始化依赖并启动服务；API 注册在 internal/api 以便扩展
package main

import (
	"context"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/joho/godotenv"

	"pleiades-api/internal/api"
	"pleiades-api/internal/gazetteer"
	"pleiades-api/internal/logger"
	"pleiades-api/internal/metrics"
	"pleiades-api/internal/middleware"
	"pleiades-api/internal/utils"
	"pleiades-api/internal/version"
)

func main() {
	_ = godotenv.Load(".env")
	_ = godotenv.Load(filepath.Join("data", "env", ".env"))
	// 日志初始化
	l := logger.Setup()
	l.Debug("log_init_ok", "version", version.Version, "commit", version.Commit)
	apiBase := strings.TrimRight(os.Getenv("API_BASE"), "/")
	if apiBase == "" {
		apiBase = "/api"
	}
	l.Debug("config_api_base", "base", apiBase)

	cfg := &gazetteer.Config{}
	if path := os.Getenv("PLEIADES_CONFIG"); path != "" {
		c, err := gazetteer.LoadConfig(path)
		if err != nil {
			l.Error("config_load_error", "path", path, "err", err)
			os.Exit(1)
		}
		cfg = c
		l.Info("config_loaded", "path", path)
	}
	if err := cfg.ApplyEnv(); err != nil {
		l.Error("config_env_error", "err", err)
		os.Exit(1)
	}
	opts, err := cfg.Options()
	if err != nil {
		l.Error("config_error", "err", err)
		os.Exit(1)
	}

	rc := utils.OpenRedisFromEnv()
	if rc == nil {
		l.Info("redis_disabled")
	} else if err := rc.Ping(context.Background()).Err(); err != nil {
		l.Error("redis_ping_error", "err", err)
		rc = nil
	} else {
		l.Info("redis_ping_ok")
		opts = append(opts, gazetteer.WithRedis(rc))
	}

	g, err := gazetteer.New(append(opts, gazetteer.WithLogger(l))...)
	if err != nil {
		l.Error("gazetteer_init_error", "err", err)
		os.Exit(1)
	}
	l.Info("gazetteer_ready", "base", g.BaseURL(), "indexes", g.IndexNames())

	// 背景：预热常用地名，失败不影响服务启动
	if s := os.Getenv("PRELOAD_PLACES"); s != "" {
		go preload(g, strings.Split(s, ","))
	}

	mux := http.NewServeMux()
	mux.Handle(apiBase+"/", http.StripPrefix(apiBase, api.BuildRoutes(g)))
	mux.Handle(apiBase+"/metrics", metrics.Handler())
	mux.HandleFunc("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("cache-control", "no-store")
		_, _ = w.Write([]byte("ok\n"))
	})

	addr := os.Getenv("ADDR")
	if addr == "" {
		addr = ":8080"
	}
	handler := logger.AccessMiddleware(l)(mux)
	handler = middleware.Wrap(handler)
	s := &http.Server{Addr: addr, Handler: handler, ReadHeaderTimeout: 10 * time.Second}
	if os.Getenv("TLS_ENABLE") == "true" {
		certPath := os.Getenv("TLS_CERT_PATH")
		keyPath := os.Getenv("TLS_KEY_PATH")
		if certPath == "" {
			certPath = filepath.Join("data", "certs", "server.crt")
		}
		if keyPath == "" {
			keyPath = filepath.Join("data", "certs", "server.key")
		}
		if err := utils.EnsureSelfSignedCert(certPath, keyPath, "pleiades-api.local"); err != nil {
			l.Error("tls_cert_error", "err", err)
			os.Exit(1)
		}
		l.Info("listening_tls", "addr", addr, "cert", certPath)
		if err := s.ListenAndServeTLS(certPath, keyPath); err != nil {
			l.Error("server_error", "err", err)
		}
		return
	}
	l.Info("listening", "addr", addr)
	if err := s.ListenAndServe(); err != nil {
		l.Error("server_error", "err", err)
	}
}

func preload(g *gazetteer.Gazetteer, pids []string) {
	l := logger.L()
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Minute)
	defer cancel()
	n := 0
	for _, pid := range pids {
		pid = strings.TrimSpace(pid)
		if pid == "" {
			continue
		}
		if _, err := g.GetPlace(ctx, pid, false); err != nil {
			l.Warn("preload_error", "pid", pid, "err", err)
			continue
		}
		n++
	}
	l.Info("preload_done", "loaded", n, "requested", len(pids))
}

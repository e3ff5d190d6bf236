package utils

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"time"
)

// ListenAndServe：按 TLS_ENABLE 选择 HTTPS（自签名证书自动生成）或 HTTP，ctx 结束时优雅关闭
// 约束：TLS_REDIRECT_ENABLE=true 时额外在 TLS_REDIRECT_ADDR（默认 :80）监听并 301 到 HTTPS 端口。
func ListenAndServe(ctx context.Context, l *slog.Logger, s *http.Server, cn string) error {
	go func() {
		<-ctx.Done()
		sctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = s.Shutdown(sctx)
	}()
	var err error
	if os.Getenv("TLS_ENABLE") == "true" {
		certPath := envOr("TLS_CERT_PATH", filepath.Join("data", "certs", "server.crt"))
		keyPath := envOr("TLS_KEY_PATH", filepath.Join("data", "certs", "server.key"))
		if e := EnsureSelfSignedCert(certPath, keyPath, cn); e != nil {
			l.Error("tls_cert_error", "err", e)
		}
		if os.Getenv("TLS_REDIRECT_ENABLE") == "true" {
			go redirectToHTTPS(l, envOr("TLS_REDIRECT_ADDR", ":80"), s.Addr)
		}
		l.Info("listening_tls", "addr", s.Addr, "cert", certPath)
		err = s.ListenAndServeTLS(certPath, keyPath)
	} else {
		l.Info("listening", "addr", s.Addr)
		err = s.ListenAndServe()
	}
	if errors.Is(err, http.ErrServerClosed) {
		return nil
	}
	return err
}

func redirectToHTTPS(l *slog.Logger, redirAddr, httpsAddr string) {
	httpsPort := httpsAddr[strings.LastIndex(httpsAddr, ":")+1:]
	h := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		host := r.Host
		if i := strings.LastIndex(host, ":"); i != -1 {
			host = host[:i]
		}
		if httpsPort != "" {
			host += ":" + httpsPort
		}
		target := "https://" + host + r.URL.RequestURI()
		http.Redirect(w, r, target, http.StatusMovedPermanently)
		l.Debug("http_redirect", "from", r.Host, "to", target)
	})
	l.Info("http_redirect_listening", "addr", redirAddr, "to", "https"+httpsAddr)
	_ = http.ListenAndServe(redirAddr, h)
}

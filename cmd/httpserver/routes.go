package main

import (
	"fmt"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/zap"

	"github.com/Brownie44l1/minihttp/internal/config"
	"github.com/Brownie44l1/minihttp/internal/request"
	"github.com/Brownie44l1/minihttp/internal/response"
	"github.com/Brownie44l1/minihttp/internal/router"
	"github.com/Brownie44l1/minihttp/internal/server"
	"github.com/Brownie44l1/minihttp/internal/session"
	"github.com/Brownie44l1/minihttp/internal/template"
)

const defaultStaticDir = "static"

const helloTemplate = "<html><body>Hello, {{ name }}!</body></html>"

const notFoundTemplate = `<!DOCTYPE html>
<html>
<head><title>Not Found</title></head>
<body><h1>404</h1><p>Nothing at {{path}}.</p></body>
</html>`

// newServer wires the demo application
func newServer(cfg *config.Config, logger *zap.Logger) *server.Server {
	renderer := template.NewEngine(cfg.Templates.Dir)
	srv := server.New(cfg.Server,
		server.WithLogger(logger),
		server.WithSessionStore(session.NewStoreWithShards(cfg.Session.Shards)),
		server.WithRenderer(renderer),
	)

	srv.Use(server.RequestID())
	if cfg.RateLimit.RPS > 0 {
		limiter := server.NewRateLimiter(cfg.RateLimit.RPS, cfg.RateLimit.Burst)
		srv.Before(server.RateLimit(limiter))
		srv.Metrics().Registry().MustRegister(prometheus.NewGaugeFunc(prometheus.GaugeOpts{
			Namespace: "minihttp",
			Name:      "ratelimit_clients",
			Help:      "Clients holding a rate limit bucket",
		}, func() float64 {
			return float64(limiter.Len())
		}))
	}
	srv.Use(server.CORS(server.DefaultCORSConfig()))
	srv.After(server.AccessLog(logger.Named("access")))

	srv.GET("/hello/<name>", hello)
	srv.POST("/echo", echo)
	srv.GET("/hello-template-string/<name>", func(req *request.Request, params router.Params) *response.Response {
		return response.HTML(response.StatusOK, srv.Renderer().RenderString(helloTemplate, params))
	})
	srv.GET("/hello-template-file/<name>", func(req *request.Request, params router.Params) *response.Response {
		html, err := srv.Renderer().Render("hello.html", params)
		if err != nil {
			logger.Warn("Template unavailable", zap.Error(err))
			return response.HTML(response.StatusInternalServerError, "<h1>Template not found</h1>")
		}
		return response.HTML(response.StatusOK, html)
	})
	srv.GET("/session", visits)
	srv.GET("/api/time", now)
	srv.GET("/metrics", srv.Metrics().Handler())

	srv.ErrorHandler(response.StatusNotFound, func(req *request.Request, code response.StatusCode) *response.Response {
		return response.HTML(code, srv.Renderer().RenderString(notFoundTemplate, map[string]string{
			"path": req.Path,
		}))
	})

	for _, st := range cfg.Static {
		srv.Static(st.Prefix, st.Dir)
	}
	if len(cfg.Static) == 0 {
		srv.Static("/", defaultStaticDir)
	}
	return srv
}

func hello(req *request.Request, params router.Params) *response.Response {
	return response.Text(response.StatusOK, fmt.Sprintf("Hello, %s!", params["name"]))
}

func echo(req *request.Request, params router.Params) *response.Response {
	ct := req.Header("Content-Type")
	if ct == "" {
		ct = response.ContentTypeText
	}
	return response.New(response.StatusOK, req.Body, ct)
}

// visits counts requests per session
func visits(req *request.Request, params router.Params) *response.Response {
	var n int
	req.Session.Update(func(values map[string]string) {
		n, _ = strconv.Atoi(values["visits"])
		n++
		values["visits"] = strconv.Itoa(n)
	})
	return response.Text(response.StatusOK, fmt.Sprintf("You have visited %d time(s) in session %s (%d key(s) stored)",
		n, req.Session.ID, req.Session.Len()))
}

func now(req *request.Request, params router.Params) *response.Response {
	resp, err := response.MarshalJSON(response.StatusOK, struct {
		Time      time.Time `json:"time"`
		RequestID string    `json:"requestId"`
	}{
		Time:      time.Now().UTC(),
		RequestID: req.Header(server.RequestIDHeader),
	})
	if err != nil {
		return response.Error(response.StatusInternalServerError)
	}
	return resp
}

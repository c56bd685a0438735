// Copyright 2023 Gabriel Adrian Samfira
//
//    Licensed under the Apache License, Version 2.0 (the "License"); you may
//    not use this file except in compliance with the License. You may obtain
//    a copy of the License at
//
//         http://www.apache.org/licenses/LICENSE-2.0
//
//    Unless required by applicable law or agreed to in writing, software
//    distributed under the License is distributed on an "AS IS" BASIS, WITHOUT
//    WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied. See the
//    License for the specific language governing permissions and limitations
//    under the License.

package httpsrv

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"sync"
	"time"

	_ "expvar"         // Register the expvar handlers
	_ "net/http/pprof" // Register the pprof handlers

	"github.com/gabriel-samfira/techdesk/config"
)

const shutdownTimeout = 60 * time.Second

func NewHTTPServer(ctx context.Context, cfg *config.Config, handler http.Handler, log *slog.Logger) (*HTTPServer, error) {
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}
	listener, err := net.Listen("tcp", cfg.HTTPServer.BindAddress())
	if err != nil {
		return nil, fmt.Errorf("failed to listen on %s: %w", cfg.HTTPServer.BindAddress(), err)
	}

	var debugListener net.Listener
	if cfg.DebugServer.Enabled {
		debugListener, err = net.Listen("tcp", cfg.DebugServer.BindAddressString())
		if err != nil {
			listener.Close()
			return nil, fmt.Errorf("failed to listen on %s: %w", cfg.DebugServer.BindAddressString(), err)
		}
	}

	return &HTTPServer{
		listener:      listener,
		debugListener: debugListener,
		handler:       handler,
		cfg:           cfg,
		ctx:           ctx,
		log:           log.With("component", "httpsrv"),
		done:          make(chan struct{}),
	}, nil
}

type HTTPServer struct {
	listener      net.Listener
	debugListener net.Listener
	handler       http.Handler
	cfg           *config.Config
	ctx           context.Context
	log           *slog.Logger

	srv      *http.Server
	debugSrv *http.Server

	stopOnce sync.Once
	done     chan struct{}
}

// Addr returns the address the API listener is bound to.
func (h *HTTPServer) Addr() net.Addr {
	return h.listener.Addr()
}

func (h *HTTPServer) loop() {
	<-h.ctx.Done()
	if err := h.Stop(); err != nil {
		h.log.Error("failed to stop http server", "error", err)
	}
}

func (h *HTTPServer) startAPIServer() error {
	srv := &http.Server{
		Handler:           h.handler,
		ReadHeaderTimeout: 30 * time.Second,
	}
	h.srv = srv

	go func() {
		var err error
		if h.cfg.HTTPServer.UseTLS {
			h.log.Info("serving https", "address", h.listener.Addr().String())
			err = srv.ServeTLS(h.listener, h.cfg.HTTPServer.TLSConfig.CRT, h.cfg.HTTPServer.TLSConfig.Key)
		} else {
			h.log.Info("serving http", "address", h.listener.Addr().String())
			err = srv.Serve(h.listener)
		}
		if !errors.Is(err, http.ErrServerClosed) {
			h.log.Error("api server stopped", "error", err)
		}
	}()

	go h.loop()
	return nil
}

func (h *HTTPServer) startDebugServer() error {
	srv := &http.Server{
		Handler:           http.DefaultServeMux,
		ReadHeaderTimeout: 30 * time.Second,
	}
	h.debugSrv = srv

	go func() {
		h.log.Info("serving debug endpoints", "address", h.debugListener.Addr().String())
		if err := srv.Serve(h.debugListener); !errors.Is(err, http.ErrServerClosed) {
			h.log.Error("debug server stopped", "error", err)
		}
	}()
	return nil
}

func (h *HTTPServer) Start() error {
	if err := h.startAPIServer(); err != nil {
		return fmt.Errorf("failed to start api server: %w", err)
	}

	if h.cfg.DebugServer.Enabled {
		if err := h.startDebugServer(); err != nil {
			return fmt.Errorf("failed to start debug server: %w", err)
		}
	}

	return nil
}

// Wait blocks until the server has been shut down.
func (h *HTTPServer) Wait() {
	<-h.done
}

func (h *HTTPServer) Stop() (err error) {
	h.stopOnce.Do(func() {
		defer close(h.done)
		if h.srv == nil {
			h.listener.Close()
			if h.debugListener != nil {
				h.debugListener.Close()
			}
			return
		}

		shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer shutdownCancel()
		if shutdownErr := h.srv.Shutdown(shutdownCtx); shutdownErr != nil {
			err = fmt.Errorf("failed to shutdown http server: %w", shutdownErr)
			return
		}

		if h.debugSrv != nil {
			if shutdownErr := h.debugSrv.Shutdown(shutdownCtx); shutdownErr != nil {
				err = fmt.Errorf("failed to shutdown debug server: %w", shutdownErr)
			}
		}
	})
	return err
}

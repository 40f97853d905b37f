// Copyright 2023 UMH Systems GmbH
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package internal

import (
	"context"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"go.uber.org/zap"
)

type GracefulShutdownHandler interface {
	Shutdown()          // Triggers a graceful shutdown programmatically.
	ShuttingDown() bool // Quickly checks if a shutdown is in progress.
	Wait()              // Blocks until shutdown tasks are complete.
}

type gracefulShutdown struct {
	quit         chan os.Signal // Blocks until a SIGTERM/SIGINT signal is received.
	shuttingDown chan bool      // Indicates if a shutdown is happening.
	wg           sync.WaitGroup // Waits until all shutdown tasks are complete.
	timeout      time.Duration
	exit         func(code int)
}

// NewGracefulShutdown starts a goroutine that waits for SIGTERM/SIGINT (or a
// call to Shutdown) and then runs onShutdown with a context bounded by
// timeout. The process exits once onShutdown returns or the timeout expires.
func NewGracefulShutdown(timeout time.Duration, onShutdown func(ctx context.Context) error) GracefulShutdownHandler {
	return newGracefulShutdown(timeout, onShutdown, os.Exit)
}

func newGracefulShutdown(timeout time.Duration, onShutdown func(ctx context.Context) error, exit func(code int)) *gracefulShutdown {
	gs := &gracefulShutdown{
		quit:         make(chan os.Signal, 1),
		shuttingDown: make(chan bool, 1),
		wg:           sync.WaitGroup{},
		timeout:      timeout,
		exit:         exit,
	}
	gs.wg.Add(1)

	go func(gs *gracefulShutdown) {
		defer gs.wg.Done()
		signal.Notify(gs.quit, syscall.SIGINT, syscall.SIGTERM)
		sig := <-gs.quit
		signal.Stop(gs.quit)
		gs.shuttingDown <- true
		zap.S().Infow("Received signal, shutting down", "signal", sig.String())

		code := 0
		if onShutdown != nil {
			zap.S().Infow("Waiting for shutdown tasks to complete", "timeout", gs.timeout)
			ctx, cancel := context.WithTimeout(context.Background(), gs.timeout)
			err := onShutdown(ctx)
			cancel()
			if err != nil {
				zap.S().Errorw("Error during shutdown", "error", err)
				code = 1
			}
		}
		if code == 0 {
			zap.S().Info("Shutdown tasks completed. Ready to exit.")
		}
		// Flush buffer
		_ = zap.S().Sync()
		gs.exit(code)
	}(gs)

	return gs
}

func (gs *gracefulShutdown) ShuttingDown() bool {
	select {
	case <-gs.shuttingDown:
		// Put the value back, in case it's checked again later during shutdown.
		gs.shuttingDown <- true
		return true
	default:
		return false
	}
}

func (gs *gracefulShutdown) Shutdown() {
	// Only send a SIGTERM signal if we are not already shutting down.
	if !gs.ShuttingDown() {
		select {
		case gs.quit <- syscall.SIGTERM:
		default:
		}
	}
}

func (gs *gracefulShutdown) Wait() {
	gs.wg.Wait()
}

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
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func Test_GracefulShutdownDrainsServer(t *testing.T) {
	exitCode := make(chan int, 1)
	srv := httptest.NewUnstartedServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))
	srv.Start()

	gs := newGracefulShutdown(time.Second, func(ctx context.Context) error {
		srv.Close()
		return nil
	}, func(code int) { exitCode <- code })

	res, err := http.Get(srv.URL)
	if assert.NoError(t, err) {
		assert.Equal(t, http.StatusOK, res.StatusCode)
		_ = res.Body.Close()
	}
	assert.False(t, gs.ShuttingDown())

	gs.Shutdown()
	gs.Wait()

	assert.True(t, gs.ShuttingDown())
	assert.Equal(t, 0, <-exitCode)

	_, err = http.Get(srv.URL)
	assert.Error(t, err)
}

func Test_GracefulShutdownReportsFailure(t *testing.T) {
	exitCode := make(chan int, 1)
	gs := newGracefulShutdown(50*time.Millisecond, func(ctx context.Context) error {
		<-ctx.Done()
		return errors.New("server did not drain")
	}, func(code int) { exitCode <- code })

	gs.Shutdown()
	gs.Shutdown()
	gs.Wait()

	assert.Equal(t, 1, <-exitCode)
}

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

package store

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"net/url"
	"os"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/unilibre/proyectos/internal"
	"go.uber.org/zap"
	"golang.org/x/oauth2/google"
	"google.golang.org/api/googleapi"
	"google.golang.org/api/option"
	"google.golang.org/api/sheets/v4"
)

// SheetsConfig configures the Google Sheets backend.
type SheetsConfig struct {
	SpreadsheetID string
	// CredentialsJSON holds an inline service-account key. It wins over CredentialsFile.
	CredentialsJSON string
	CredentialsFile string
	// Timeout bounds every API call. Zero disables the bound.
	Timeout time.Duration
	// ReadRetries is the number of extra attempts for reads failing with KindTransient.
	ReadRetries int64
	// ClientOptions replace credential loading entirely when set.
	ClientOptions []option.ClientOption
}

// Sheets reads and writes the first worksheet of a spreadsheet.
type Sheets struct {
	cfg SheetsConfig

	newService func() (*sheets.Service, error)
	mu         sync.Mutex
	svc        atomic.Pointer[sheets.Service]
}

// NewSheets returns a Sheets store. No network call happens until the first operation.
func NewSheets(cfg SheetsConfig) *Sheets {
	s := &Sheets{cfg: cfg}
	s.newService = s.authorize
	return s
}

// service returns the authorized API handle, constructing it on first use.
// Construction happens at most once; a failed attempt is retried on the next call.
func (s *Sheets) service() (*sheets.Service, error) {
	if svc := s.svc.Load(); svc != nil {
		return svc, nil
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if svc := s.svc.Load(); svc != nil {
		return svc, nil
	}
	svc, err := s.newService()
	if err != nil {
		return nil, err
	}
	s.svc.Store(svc)
	return svc, nil
}

func (s *Sheets) authorize() (*sheets.Service, error) {
	// The handle outlives any request, so it is bound to the background context.
	ctx := context.Background()
	if len(s.cfg.ClientOptions) > 0 {
		svc, err := sheets.NewService(ctx, s.cfg.ClientOptions...)
		if err != nil {
			return nil, NewError("authorize", KindAuth, err)
		}
		return svc, nil
	}

	var (
		data   []byte
		source string
	)
	if s.cfg.CredentialsJSON != "" {
		data = []byte(s.cfg.CredentialsJSON)
		source = "GOOGLE_CREDENTIALS_JSON"
	} else {
		var err error
		data, err = os.ReadFile(s.cfg.CredentialsFile)
		if err != nil {
			return nil, NewError("authorize", KindAuth, fmt.Errorf(
				"no credentials found at %s, set GOOGLE_APPLICATION_CREDENTIALS or GOOGLE_CREDENTIALS_JSON: %w",
				s.cfg.CredentialsFile, err))
		}
		source = s.cfg.CredentialsFile
	}

	creds, err := google.CredentialsFromJSON(ctx, data, sheets.SpreadsheetsScope, sheets.DriveScope)
	if err != nil {
		return nil, NewError("authorize", KindAuth, fmt.Errorf("reading credentials from %s: %w", source, err))
	}
	svc, err := sheets.NewService(ctx, option.WithCredentials(creds))
	if err != nil {
		return nil, NewError("authorize", KindAuth, err)
	}
	zap.S().Infow("Authorized Google Sheets client", "source", source)
	return svc, nil
}

func (s *Sheets) withTimeout(ctx context.Context) (context.Context, context.CancelFunc) {
	if s.cfg.Timeout <= 0 {
		return context.WithCancel(ctx)
	}
	return context.WithTimeout(ctx, s.cfg.Timeout)
}

func (s *Sheets) read(ctx context.Context, fn func(ctx context.Context) error) error {
	return internal.RetryWithBackoff(ctx, s.cfg.ReadRetries, 200*time.Millisecond, 2*time.Second, IsTransient, func() error {
		callCtx, cancel := s.withTimeout(ctx)
		defer cancel()
		return fn(callCtx)
	})
}

// worksheetTitle returns the title of the first worksheet.
func (s *Sheets) worksheetTitle(ctx context.Context, svc *sheets.Service) (string, error) {
	ss, err := svc.Spreadsheets.Get(s.cfg.SpreadsheetID).Fields("sheets.properties.title").Context(ctx).Do()
	if err != nil {
		return "", classify("open", err)
	}
	if len(ss.Sheets) == 0 || ss.Sheets[0].Properties == nil {
		return "", NewError("open", KindMalformed, errors.New("spreadsheet has no worksheets"))
	}
	return ss.Sheets[0].Properties.Title, nil
}

func (s *Sheets) List(ctx context.Context) (Table, error) {
	var table Table
	err := s.read(ctx, func(ctx context.Context) error {
		svc, err := s.service()
		if err != nil {
			return err
		}
		title, err := s.worksheetTitle(ctx, svc)
		if err != nil {
			return err
		}
		vr, err := svc.Spreadsheets.Values.Get(s.cfg.SpreadsheetID, quoteSheet(title)).Context(ctx).Do()
		if err != nil {
			return classify("list", err)
		}
		table = Table{Headers: []string{}, Rows: [][]string{}, Title: title}
		for i, row := range vr.Values {
			if i == 0 {
				table.Headers = cellTexts(row)
				continue
			}
			table.Rows = append(table.Rows, cellTexts(row))
		}
		return nil
	})
	return table, err
}

func (s *Sheets) HeaderRow(ctx context.Context) ([]string, error) {
	var headers []string
	err := s.read(ctx, func(ctx context.Context) error {
		svc, err := s.service()
		if err != nil {
			return err
		}
		title, err := s.worksheetTitle(ctx, svc)
		if err != nil {
			return err
		}
		vr, err := svc.Spreadsheets.Values.Get(s.cfg.SpreadsheetID, quoteSheet(title)+"!1:1").Context(ctx).Do()
		if err != nil {
			return classify("header", err)
		}
		headers = []string{}
		if len(vr.Values) > 0 {
			headers = cellTexts(vr.Values[0])
		}
		return nil
	})
	return headers, err
}

func (s *Sheets) Append(ctx context.Context, row []string) error {
	ctx, cancel := s.withTimeout(ctx)
	defer cancel()

	svc, err := s.service()
	if err != nil {
		return err
	}
	title, err := s.worksheetTitle(ctx, svc)
	if err != nil {
		return err
	}
	vr := &sheets.ValueRange{Values: [][]interface{}{cellValues(row)}}
	_, err = svc.Spreadsheets.Values.Append(s.cfg.SpreadsheetID, quoteSheet(title)+"!A1", vr).
		ValueInputOption("USER_ENTERED").
		InsertDataOption("INSERT_ROWS").
		Context(ctx).Do()
	if err != nil {
		return classify("append", err)
	}
	return nil
}

func (s *Sheets) Update(ctx context.Context, position int, row []string) error {
	if position < 1 {
		return NewError("update", KindUnknown, fmt.Errorf("invalid row position %d", position))
	}
	ctx, cancel := s.withTimeout(ctx)
	defer cancel()

	svc, err := s.service()
	if err != nil {
		return err
	}
	title, err := s.worksheetTitle(ctx, svc)
	if err != nil {
		return err
	}
	rng := fmt.Sprintf("%s!A%d", quoteSheet(title), position)
	vr := &sheets.ValueRange{Values: [][]interface{}{cellValues(row)}}
	_, err = svc.Spreadsheets.Values.Update(s.cfg.SpreadsheetID, rng, vr).
		ValueInputOption("USER_ENTERED").
		Context(ctx).Do()
	if err != nil {
		return classify("update", err)
	}
	return nil
}

// classify maps API and transport failures onto store kinds.
func classify(op string, err error) error {
	var se *Error
	if errors.As(err, &se) {
		return err
	}

	var gerr *googleapi.Error
	if errors.As(err, &gerr) {
		switch {
		case gerr.Code == http.StatusUnauthorized || gerr.Code == http.StatusForbidden:
			return NewError(op, KindAuth, err)
		case gerr.Code == http.StatusNotFound:
			return NewError(op, KindNotFound, err)
		case gerr.Code == http.StatusTooManyRequests || gerr.Code >= 500:
			return NewError(op, KindTransient, err)
		case gerr.Code == http.StatusBadRequest:
			return NewError(op, KindMalformed, err)
		}
		return NewError(op, KindUnknown, err)
	}

	if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled) {
		return NewError(op, KindTransient, err)
	}
	var netErr net.Error
	if errors.As(err, &netErr) {
		return NewError(op, KindTransient, err)
	}
	var urlErr *url.Error
	if errors.As(err, &urlErr) {
		return NewError(op, KindTransient, err)
	}
	return NewError(op, KindUnknown, err)
}

func quoteSheet(title string) string {
	return "'" + strings.ReplaceAll(title, "'", "''") + "'"
}

func cellTexts(row []interface{}) []string {
	out := make([]string, len(row))
	for i, v := range row {
		switch c := v.(type) {
		case nil:
			out[i] = ""
		case string:
			out[i] = c
		default:
			out[i] = fmt.Sprint(c)
		}
	}
	return out
}

func cellValues(row []string) []interface{} {
	out := make([]interface{}, len(row))
	for i, v := range row {
		out[i] = v
	}
	return out
}

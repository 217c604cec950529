package rarom

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"raritp-backend/lib/telemetry"

	"github.com/stretchr/testify/require"
)

type fakeSolver struct {
	mu    sync.Mutex
	calls int
	solve func(call int) (string, error)
}

func (s *fakeSolver) Solve(ctx context.Context, image []byte) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.calls++
	if s.solve == nil {
		return "1234", nil
	}
	return s.solve(s.calls)
}

type fakePortal struct {
	mu             sync.Mutex
	captchaFetches int
	posts          int

	// number of submissions to reject before succeeding
	rejections int
	// when set, overrides the submission handler entirely
	postHandler http.HandlerFunc
	// when set, overrides the landing page
	landingPage string

	server *httptest.Server
}

const portalLanding = `
<html><body>
<img id="imgVerf" src="vcode.asp?t=1">
<form name="frm" action="rarpol.asp#rezultat" method="post">
	<input type="hidden" name="tip" value="2">
	<input type="text" name="nr_id" value="">
	<input type="text" name="verif_cod" value="">
	<input type="submit" name="trimite" value="">
</form>
</body></html>`

const portalRejection = `<html><body>
Codul de verificare a fost copiat incorect. Încercați din nou.
</body></html>`

const portalSuccess = `<html><body><div id="rezbgcolor">
Inspecția tehnică periodică este valabilă până la 5-mar-2026.
</div></body></html>`

func newFakePortal(t *testing.T) *fakePortal {
	portal := &fakePortal{landingPage: portalLanding}

	mux := http.NewServeMux()
	mux.HandleFunc("GET /rarpol/rarpol.asp", func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, portal.landingPage)
	})
	mux.HandleFunc("GET /rarpol/vcode.asp", func(w http.ResponseWriter, r *http.Request) {
		portal.mu.Lock()
		portal.captchaFetches++
		portal.mu.Unlock()
		w.Header().Set("Content-Type", "image/png")
		w.Write([]byte("not-really-a-png"))
	})
	mux.HandleFunc("POST /rarpol/rarpol.asp", func(w http.ResponseWriter, r *http.Request) {
		portal.mu.Lock()
		portal.posts++
		post := portal.posts
		portal.mu.Unlock()

		if portal.postHandler != nil {
			portal.postHandler(w, r)
			return
		}

		require.NoError(t, r.ParseForm())
		require.Equal(t, "2", r.PostForm.Get("tip"))
		require.Equal(t, "Caută", r.PostForm.Get("trimite"))
		require.Len(t, r.PostForm.Get("verif_cod"), 4)

		if post <= portal.rejections {
			fmt.Fprint(w, portalRejection)
			return
		}
		fmt.Fprint(w, portalSuccess)
	})

	portal.server = httptest.NewServer(mux)
	t.Cleanup(portal.server.Close)
	return portal
}

func (p *fakePortal) client(t *testing.T, solver *fakeSolver, sink CaptchaSink) *Client {
	client, err := NewClient(ClientOptions{
		BaseUrl:     p.server.URL + "/rarpol/rarpol.asp",
		Solver:      solver,
		CaptchaSink: sink,
		Backoff:     time.Millisecond,
	})
	require.NoError(t, err)
	return client
}

func TestCheckSucceedsFirstAttempt(t *testing.T) {
	cleanup := telemetry.SetupForTesting(t, "test:scrapers/rarom")
	defer cleanup()

	portal := newFakePortal(t)
	solver := &fakeSolver{}

	var sunk []int
	sink := func(vin string, attempt int, image []byte) {
		require.Equal(t, "VIN123", vin)
		require.Equal(t, []byte("not-really-a-png"), image)
		sunk = append(sunk, attempt)
	}

	out, err := portal.client(t, solver, sink).Check(context.Background(), "VIN123")
	require.NoError(t, err)
	require.Equal(t, StatusValid, out.Status)
	require.Equal(t, "2026-03-05", out.ExpirationDate)

	require.Equal(t, 1, portal.captchaFetches)
	require.Equal(t, 1, portal.posts)
	require.Equal(t, 1, solver.calls)
	require.Equal(t, []int{1}, sunk)
}

func TestCheckRetriesRejectedCaptcha(t *testing.T) {
	cleanup := telemetry.SetupForTesting(t, "test:scrapers/rarom")
	defer cleanup()

	portal := newFakePortal(t)
	portal.rejections = 2
	solver := &fakeSolver{}

	out, err := portal.client(t, solver, nil).Check(context.Background(), "VIN123")
	require.NoError(t, err)
	require.Equal(t, StatusValid, out.Status)
	require.Equal(t, "2026-03-05", out.ExpirationDate)

	// every retry must run the full cycle with a fresh captcha
	require.Equal(t, 3, portal.captchaFetches)
	require.Equal(t, 3, portal.posts)
	require.Equal(t, 3, solver.calls)
}

func TestCheckExhaustsAttempts(t *testing.T) {
	cleanup := telemetry.SetupForTesting(t, "test:scrapers/rarom")
	defer cleanup()

	portal := newFakePortal(t)
	portal.rejections = 100
	solver := &fakeSolver{}

	_, err := portal.client(t, solver, nil).Check(context.Background(), "VIN123")
	require.Error(t, err)

	var fetchErr *FetchError
	require.ErrorAs(t, err, &fetchErr)
	require.Equal(t, 3, fetchErr.Attempts)
	require.Equal(t, "VIN123", fetchErr.VIN)
	require.ErrorIs(t, err, ErrSubmissionRejected)
	require.Equal(t, 3, portal.posts)
}

func TestCheckReportsLastCauseNotFirst(t *testing.T) {
	cleanup := telemetry.SetupForTesting(t, "test:scrapers/rarom")
	defer cleanup()

	portal := newFakePortal(t)
	portal.postHandler = func(w http.ResponseWriter, r *http.Request) {
		portal.mu.Lock()
		post := portal.posts
		portal.mu.Unlock()
		if post < 3 {
			fmt.Fprint(w, portalRejection)
			return
		}
		http.Error(w, "upstream maintenance", http.StatusBadGateway)
	}
	solver := &fakeSolver{}

	_, err := portal.client(t, solver, nil).Check(context.Background(), "VIN123")
	require.Error(t, err)

	var transportErr *TransportError
	require.ErrorAs(t, err, &transportErr)
	require.Equal(t, http.StatusBadGateway, transportErr.StatusCode)
	require.NotErrorIs(t, err, ErrSubmissionRejected)
}

func TestCheckMissingCaptchaImage(t *testing.T) {
	cleanup := telemetry.SetupForTesting(t, "test:scrapers/rarom")
	defer cleanup()

	portal := newFakePortal(t)
	portal.landingPage = `<html><body><form name="frm" action=""></form></body></html>`
	solver := &fakeSolver{}

	_, err := portal.client(t, solver, nil).Check(context.Background(), "VIN123")
	require.ErrorIs(t, err, ErrCaptchaNotFound)
	require.Equal(t, 0, solver.calls)
}

func TestCheckRecoversFromSolverError(t *testing.T) {
	cleanup := telemetry.SetupForTesting(t, "test:scrapers/rarom")
	defer cleanup()

	portal := newFakePortal(t)
	solver := &fakeSolver{
		solve: func(call int) (string, error) {
			if call == 1 {
				return "", errors.New("ocr: endpoint returned empty text")
			}
			return "1234", nil
		},
	}

	out, err := portal.client(t, solver, nil).Check(context.Background(), "VIN123")
	require.NoError(t, err)
	require.Equal(t, StatusValid, out.Status)

	require.Equal(t, 2, portal.captchaFetches)
	require.Equal(t, 1, portal.posts)
	require.Equal(t, 2, solver.calls)
}

func TestCheckNeverSubmitsShortGuess(t *testing.T) {
	cleanup := telemetry.SetupForTesting(t, "test:scrapers/rarom")
	defer cleanup()

	portal := newFakePortal(t)
	solver := &fakeSolver{
		solve: func(call int) (string, error) { return "123", nil },
	}

	_, err := portal.client(t, solver, nil).Check(context.Background(), "VIN123")
	require.Error(t, err)
	require.Equal(t, 0, portal.posts)
	require.Equal(t, 3, solver.calls)
}

func TestCheckCancellation(t *testing.T) {
	cleanup := telemetry.SetupForTesting(t, "test:scrapers/rarom")
	defer cleanup()

	portal := newFakePortal(t)
	portal.rejections = 100
	solver := &fakeSolver{}

	client, err := NewClient(ClientOptions{
		BaseUrl: portal.server.URL + "/rarpol/rarpol.asp",
		Solver:  solver,
		Backoff: time.Minute,
	})
	require.NoError(t, err)

	ctx, cancel := context.WithTimeout(context.Background(), time.Millisecond*200)
	defer cancel()

	start := time.Now()
	_, err = client.Check(ctx, "VIN123")
	require.Error(t, err)
	require.ErrorIs(t, err, context.DeadlineExceeded)
	require.Less(t, time.Since(start), time.Second*5)
}

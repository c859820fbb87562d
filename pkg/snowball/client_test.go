package snowball_test

import (
	"context"
	"errors"
	"net/http"
	"testing"
	"time"

	"github.com/Sternrassler/snowball-gateway/internal/testutil"
	"github.com/Sternrassler/snowball-gateway/pkg/credential"
	"github.com/Sternrassler/snowball-gateway/pkg/gateway"
	"github.com/Sternrassler/snowball-gateway/pkg/normalize"
	"github.com/Sternrassler/snowball-gateway/pkg/ratelimit"
	"github.com/Sternrassler/snowball-gateway/pkg/snowball"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const quotecPath = "/v5/stock/realtime/quotec.json"

func newClient(mock *testutil.MockSnowball) *snowball.Client {
	return snowball.NewClient(
		snowball.WithBaseURL(snowball.HostStock, mock.URL()),
		snowball.WithBaseURL(snowball.HostWeb, mock.URL()),
		snowball.WithBaseURL(snowball.HostFund, mock.URL()),
		snowball.WithBaseURL(snowball.HostCSIndex, mock.URL()),
		snowball.WithBaseURL(snowball.HostBond, mock.URL()),
		snowball.WithBaseURL(snowball.HostHKEX, mock.URL()),
		snowball.WithLogger(zerolog.Nop()),
	)
}

func quotec(t *testing.T) gateway.Operation {
	t.Helper()
	op, err := snowball.BuildOperation("quotec", map[string]string{"stock_code": "SH600000"})
	require.NoError(t, err)
	return op
}

func TestClient_Call_SendsToken(t *testing.T) {
	mock := testutil.NewMockSnowball()
	defer mock.Close()
	mock.SetResponse(quotecPath, testutil.NewHealthyResponse(`[{"symbol":"SH600000","current":7.1}]`))

	body, err := newClient(mock).Call(t.Context(), "token-a", quotec(t))
	require.NoError(t, err)
	assert.Contains(t, string(body), `"SH600000"`)

	assert.Equal(t, []string{"token-a"}, mock.GetTokens())
	req := mock.GetLastRequest()
	require.NotNil(t, req)
	assert.Equal(t, "SH600000", req.URL.Query().Get("symbol"))
	assert.Equal(t, snowball.DefaultUserAgent, req.Header.Get("User-Agent"))
}

func TestClient_Call_Unauthenticated(t *testing.T) {
	mock := testutil.NewMockSnowball()
	defer mock.Close()

	_, err := newClient(mock).Call(t.Context(), "", quotec(t))
	require.NoError(t, err)

	req := mock.GetLastRequest()
	require.NotNil(t, req)
	_, cookieErr := req.Cookie(snowball.TokenCookie)
	assert.ErrorIs(t, cookieErr, http.ErrNoCookie)
}

func TestClient_Call_Errors(t *testing.T) {
	tests := []struct {
		name        string
		path        string
		op          string
		args        map[string]string
		resp        testutil.MockResponse
		wantStatus  int
		wantExpired bool
	}{
		{
			name:        "auth expired",
			path:        quotecPath,
			op:          "quotec",
			resp:        testutil.NewAuthExpiredResponse(),
			wantStatus:  http.StatusBadRequest,
			wantExpired: true,
		},
		{
			name:       "server error",
			path:       quotecPath,
			op:         "quotec",
			resp:       testutil.NewServerErrorResponse(),
			wantStatus: http.StatusInternalServerError,
		},
		{
			name:       "rate limited",
			path:       quotecPath,
			op:         "quotec",
			resp:       testutil.NewRateLimitResponse(),
			wantStatus: http.StatusTooManyRequests,
		},
		{
			name: "error code inside a 200",
			path: quotecPath,
			op:   "quotec",
			resp: testutil.MockResponse{
				StatusCode: http.StatusOK,
				Body:       `{"data":null,"error_code":"400016","error_description":"请重新登录"}`,
			},
			wantStatus:  http.StatusOK,
			wantExpired: true,
		},
		{
			name: "danjuan result code",
			path: "/djapi/fund/detail/110011",
			op:   "fund_detail",
			args: map[string]string{"fund_code": "110011"},
			resp: testutil.MockResponse{
				StatusCode: http.StatusOK,
				Body:       `{"result_code":600001,"message":"基金不存在"}`,
			},
			wantStatus: http.StatusOK,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			mock := testutil.NewMockSnowball()
			defer mock.Close()
			mock.SetResponse(tt.path, tt.resp)

			op, err := snowball.BuildOperation(tt.op, tt.args)
			require.NoError(t, err)

			body, err := newClient(mock).Call(t.Context(), "token-a", op)
			require.Error(t, err)
			assert.Nil(t, body)

			var upErr *gateway.UpstreamError
			require.ErrorAs(t, err, &upErr)
			assert.Equal(t, tt.wantStatus, upErr.StatusCode)
			assert.Equal(t, tt.op, upErr.Operation)
			assert.Equal(t, tt.resp.Body, string(upErr.Payload))

			assert.Equal(t, tt.wantExpired, errors.Is(gateway.Classify(err), gateway.ErrAuthExpired))
		})
	}
}

func TestClient_Call_TransportError(t *testing.T) {
	mock := testutil.NewMockSnowball()
	url := mock.URL()
	mock.Close()

	c := snowball.NewClient(snowball.WithBaseURL(snowball.HostStock, url), snowball.WithLogger(zerolog.Nop()))
	_, err := c.Call(t.Context(), "token-a", quotec(t))

	var upErr *gateway.UpstreamError
	require.ErrorAs(t, err, &upErr)
	assert.Zero(t, upErr.StatusCode)
	assert.Nil(t, upErr.Payload)
}

func TestClient_Call_UnknownOperation(t *testing.T) {
	c := snowball.NewClient()
	_, err := c.Call(t.Context(), "", gateway.Operation{Name: "nope"})
	assert.ErrorIs(t, err, snowball.ErrUnknownOperation)
}

func TestClient_Call_ContextCancelled(t *testing.T) {
	mock := testutil.NewMockSnowball()
	defer mock.Close()
	mock.SetResponse(quotecPath, testutil.MockResponse{StatusCode: http.StatusOK, Body: `{}`, Delay: time.Second})

	ctx, cancel := context.WithTimeout(t.Context(), 20*time.Millisecond)
	defer cancel()

	_, err := newClient(mock).Call(ctx, "token-a", quotec(t))
	assert.ErrorIs(t, err, context.DeadlineExceeded)
}

// TestGateway_RotatesPastExpiredToken runs the whole call path against the
// mock server: the first token is rejected, the retry uses the second one.
func TestGateway_RotatesPastExpiredToken(t *testing.T) {
	mock := testutil.NewMockSnowball()
	defer mock.Close()
	mock.RequireToken(quotecPath, `{"data":[{"symbol":"SH600000","current":7.1}],"error_code":0}`, "fresh-token-0002")

	pool := credential.NewPool([]string{"stale-token-0001", "fresh-token-0002"}, credential.DefaultConfig(), zerolog.Nop())
	limiter, err := ratelimit.NewLimiter(ratelimit.Config{
		MinInterval:     time.Millisecond,
		MaxInterval:     10 * time.Millisecond,
		RecoveryTimeout: time.Minute,
	}, zerolog.Nop())
	require.NoError(t, err)

	gw, err := gateway.New(newClient(mock), pool, limiter, normalize.New(),
		gateway.WithRetryDelay(0),
		gateway.WithLogger(zerolog.Nop()),
	)
	require.NoError(t, err)

	out, err := gw.Invoke(t.Context(), quotec(t), normalize.ProfileNone)
	require.NoError(t, err)

	doc, ok := out.(map[string]any)
	require.True(t, ok, "want decoded object, got %T", out)
	assert.Contains(t, doc, "data")

	assert.Equal(t, []string{"stale-token-0001", "fresh-token-0002"}, mock.GetTokens())
	assert.True(t, limiter.State().IsBackedOff())

	for _, s := range pool.Snapshot() {
		if s.Credential == credential.Mask("stale-token-0001") {
			assert.Equal(t, 1, s.ConsecutiveFailures)
		} else {
			assert.Zero(t, s.ConsecutiveFailures)
		}
	}
}

// TestGateway_AllTokensExpired surfaces the refresh hint once the retry fails too.
func TestGateway_AllTokensExpired(t *testing.T) {
	mock := testutil.NewMockSnowball()
	defer mock.Close()
	mock.RequireToken(quotecPath, `{}`)

	pool := credential.NewPool([]string{"stale-token-0001"}, credential.DefaultConfig(), zerolog.Nop())
	limiter, err := ratelimit.NewLimiter(ratelimit.Config{
		MinInterval:     time.Millisecond,
		MaxInterval:     10 * time.Millisecond,
		RecoveryTimeout: time.Minute,
	}, zerolog.Nop())
	require.NoError(t, err)

	gw, err := gateway.New(newClient(mock), pool, limiter, nil,
		gateway.WithRetryDelay(0),
		gateway.WithLogger(zerolog.Nop()),
	)
	require.NoError(t, err)

	_, err = gw.Invoke(t.Context(), quotec(t), normalize.ProfileQuotec)
	require.ErrorIs(t, err, gateway.ErrAuthExpired)
	assert.Contains(t, err.Error(), "XUEQIU_TOKEN")
	assert.Equal(t, 2, mock.GetRequestCount())
}

func TestGateway_UnknownOperationSparesCredential(t *testing.T) {
	mock := testutil.NewMockSnowball()
	defer mock.Close()

	pool := credential.NewPool([]string{"token-a", "token-b"}, credential.Config{Cooldown: time.Minute, MaxFailures: 1}, zerolog.Nop())
	limiter, err := ratelimit.NewLimiter(ratelimit.Config{
		MinInterval:     time.Millisecond,
		MaxInterval:     10 * time.Millisecond,
		RecoveryTimeout: time.Minute,
	}, zerolog.Nop())
	require.NoError(t, err)

	gw, err := gateway.New(newClient(mock), pool, limiter, nil,
		gateway.WithRetryDelay(0),
		gateway.WithLogger(zerolog.Nop()),
	)
	require.NoError(t, err)

	_, err = gw.Invoke(t.Context(), gateway.Operation{Name: "quotes"}, normalize.ProfileNone)
	require.ErrorIs(t, err, snowball.ErrUnknownOperation)

	assert.Zero(t, mock.GetRequestCount())
	assert.False(t, limiter.State().IsBackedOff(), "a rejected operation must not back off the limiter")
	assert.True(t, limiter.State().LastRequest.IsZero(), "a rejected operation is not paced")
	for _, st := range pool.Snapshot() {
		assert.Zero(t, st.ConsecutiveFailures, "%s charged for a rejected operation", st.Credential)
	}
}

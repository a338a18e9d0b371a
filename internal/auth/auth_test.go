package auth_test

import (
	"context"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"courtside/internal/apperr"
	"courtside/internal/auth"
	"courtside/internal/mailer"
	"courtside/internal/memstore"
)

const (
	issuer = "courtside-test"
	key    = "test-signing-key"
)

type outbox struct{ sent []mailer.Message }

func (o *outbox) Send(_ context.Context, msg mailer.Message) error {
	o.sent = append(o.sent, msg)
	return nil
}

func newService(allowAdmin bool) (*auth.Service, *memstore.Store, *outbox) {
	st := memstore.New()
	box := &outbox{}
	svc := auth.NewService(st, box, auth.Options{
		Issuer:           issuer,
		SigningKey:       key,
		AccessTTL:        time.Minute,
		RefreshTTL:       time.Hour,
		ResetTTL:         time.Minute,
		AllowAdminSignup: allowAdmin,
		ResetURL:         "http://localhost:5173/reset-password",
	}, zap.NewNop())
	return svc, st, box
}

func TestCanAccessPolicy(t *testing.T) {
	cases := []struct {
		route auth.Route
		role  auth.Role
		want  bool
	}{
		{auth.RouteDashboard, auth.RoleAdmin, true},
		{auth.RouteDashboard, auth.RoleStudent, true},
		{auth.RouteAttendance, auth.RoleStudent, true},
		{auth.RouteStudents, auth.RoleAdmin, true},
		{auth.RouteStudents, auth.RoleStudent, false},
		{auth.RoutePurchases, auth.RoleStudent, false},
		{auth.RouteAttendanceAdmin, auth.RoleStudent, false},
		{auth.RouteAttendanceAdmin, auth.RoleAdmin, true},
		{auth.Route("unknown"), auth.RoleAdmin, false},
		{auth.RouteDashboard, auth.Role(""), false},
	}
	for _, tc := range cases {
		assert.Equal(t, tc.want, auth.CanAccess(tc.route, tc.role), "%s/%s", tc.route, tc.role)
	}
}

func TestTokensArePurposeBound(t *testing.T) {
	pair, err := auth.Issue("acct-1", auth.RoleAdmin, issuer, key, time.Minute, time.Hour)
	require.NoError(t, err)

	claims, err := auth.Parse(pair.AccessToken, key, issuer, auth.PurposeAccess)
	require.NoError(t, err)
	assert.Equal(t, "acct-1", claims.Subject)
	assert.Equal(t, auth.RoleAdmin, claims.Role)

	_, err = auth.Parse(pair.RefreshToken, key, issuer, auth.PurposeAccess)
	assert.Error(t, err)
	_, err = auth.Parse(pair.AccessToken, "other-key", issuer, auth.PurposeAccess)
	assert.Error(t, err)
	_, err = auth.Parse(pair.AccessToken, key, "other-issuer", auth.PurposeAccess)
	assert.Error(t, err)

	expired, err := auth.Issue("acct-1", auth.RoleAdmin, issuer, key, -time.Minute, time.Hour)
	require.NoError(t, err)
	_, err = auth.Parse(expired.AccessToken, key, issuer, auth.PurposeAccess)
	assert.Error(t, err)
}

func TestRegisterAndLogin(t *testing.T) {
	svc, _, _ := newService(false)
	ctx := context.Background()

	sess, err := svc.Register(ctx, auth.RegisterInput{Email: "Coach@Example.com", Password: "secret1", Name: "Coach"})
	require.NoError(t, err)
	assert.Equal(t, "coach@example.com", sess.User.Email)
	assert.Equal(t, auth.RoleStudent, sess.User.Role)

	_, err = svc.Register(ctx, auth.RegisterInput{Email: "coach@example.com", Password: "secret1"})
	assert.ErrorIs(t, err, apperr.ErrConflict)

	logged, err := svc.Login(ctx, "coach@example.com", "secret1")
	require.NoError(t, err)
	assert.Equal(t, "Coach", logged.User.Name)

	_, err = svc.Login(ctx, "coach@example.com", "wrong")
	assert.ErrorIs(t, err, apperr.ErrUnauthorized)
	_, err = svc.Login(ctx, "nobody@example.com", "secret1")
	assert.ErrorIs(t, err, apperr.ErrUnauthorized)
}

func TestRegisterValidation(t *testing.T) {
	svc, _, _ := newService(false)
	ctx := context.Background()

	_, err := svc.Register(ctx, auth.RegisterInput{Email: "bad", Password: "secret1"})
	assert.ErrorIs(t, err, apperr.ErrValidation)
	_, err = svc.Register(ctx, auth.RegisterInput{Email: "a@example.com", Password: "123"})
	assert.ErrorIs(t, err, apperr.ErrValidation)
	_, err = svc.Register(ctx, auth.RegisterInput{Email: "a@example.com", Password: "secret1", Role: "coach"})
	assert.ErrorIs(t, err, apperr.ErrValidation)
}

func TestAdminSignupGate(t *testing.T) {
	closed, _, _ := newService(false)
	_, err := closed.Register(context.Background(), auth.RegisterInput{Email: "a@example.com", Password: "secret1", Role: auth.RoleAdmin})
	assert.ErrorIs(t, err, apperr.ErrPermissionDenied)

	open, _, _ := newService(true)
	sess, err := open.Register(context.Background(), auth.RegisterInput{Email: "a@example.com", Password: "secret1", Role: auth.RoleAdmin})
	require.NoError(t, err)
	assert.Equal(t, auth.RoleAdmin, sess.User.Role)
}

func TestProfileWriteDeniedIsTolerated(t *testing.T) {
	svc, st, _ := newService(true)
	st.DenyProfileWrites = true
	ctx := context.Background()

	sess, err := svc.Register(ctx, auth.RegisterInput{Email: "a@example.com", Password: "secret1", Role: auth.RoleAdmin})
	require.NoError(t, err)
	assert.Equal(t, auth.RoleAdmin, sess.User.Role)

	// No profile was stored, so login falls back to a student session.
	logged, err := svc.Login(ctx, "a@example.com", "secret1")
	require.NoError(t, err)
	assert.Equal(t, auth.RoleStudent, logged.User.Role)
}

func TestRefreshRotatesAndLogoutRevokes(t *testing.T) {
	svc, _, _ := newService(false)
	ctx := context.Background()
	sess, err := svc.Register(ctx, auth.RegisterInput{Email: "a@example.com", Password: "secret1"})
	require.NoError(t, err)

	next, err := svc.Refresh(ctx, sess.Tokens.RefreshToken)
	require.NoError(t, err)
	assert.NotEqual(t, sess.Tokens.RefreshToken, next.Tokens.RefreshToken)

	_, err = svc.Refresh(ctx, sess.Tokens.RefreshToken)
	assert.ErrorIs(t, err, apperr.ErrUnauthorized)

	require.NoError(t, svc.Logout(ctx, next.Tokens.RefreshToken))
	_, err = svc.Refresh(ctx, next.Tokens.RefreshToken)
	assert.ErrorIs(t, err, apperr.ErrUnauthorized)

	_, err = svc.Refresh(ctx, sess.Tokens.AccessToken)
	assert.ErrorIs(t, err, apperr.ErrUnauthorized)
}

func TestPasswordReset(t *testing.T) {
	svc, _, box := newService(false)
	ctx := context.Background()
	_, err := svc.Register(ctx, auth.RegisterInput{Email: "a@example.com", Password: "secret1"})
	require.NoError(t, err)

	require.NoError(t, svc.RequestPasswordReset(ctx, "nobody@example.com"))
	assert.Empty(t, box.sent)

	require.NoError(t, svc.RequestPasswordReset(ctx, "a@example.com"))
	require.Len(t, box.sent, 1)
	assert.Equal(t, "a@example.com", box.sent[0].To)

	text := box.sent[0].Text
	link := text[strings.Index(text, "http"):]
	u, err := url.Parse(strings.TrimSpace(link))
	require.NoError(t, err)
	token := u.Query().Get("token")
	require.NotEmpty(t, token)

	assert.ErrorIs(t, svc.ResetPassword(ctx, token, "123"), apperr.ErrValidation)
	require.NoError(t, svc.ResetPassword(ctx, token, "newsecret"))

	_, err = svc.Login(ctx, "a@example.com", "secret1")
	assert.ErrorIs(t, err, apperr.ErrUnauthorized)
	_, err = svc.Login(ctx, "a@example.com", "newsecret")
	require.NoError(t, err)

	assert.ErrorIs(t, svc.ResetPassword(ctx, "garbage", "newsecret"), apperr.ErrUnauthorized)
}

func TestMiddleware(t *testing.T) {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.GET("/admin", auth.RequireAuth(key, issuer), auth.RequireRoute(auth.RouteStudents), func(c *gin.Context) {
		claims, _ := auth.ClaimsFrom(c)
		c.String(http.StatusOK, claims.Subject)
	})

	do := func(header string) *httptest.ResponseRecorder {
		req := httptest.NewRequest(http.MethodGet, "/admin", nil)
		if header != "" {
			req.Header.Set("Authorization", header)
		}
		w := httptest.NewRecorder()
		r.ServeHTTP(w, req)
		return w
	}

	assert.Equal(t, http.StatusUnauthorized, do("").Code)
	assert.Equal(t, http.StatusUnauthorized, do("Bearer nonsense").Code)

	student, _ := auth.Issue("s1", auth.RoleStudent, issuer, key, time.Minute, time.Hour)
	assert.Equal(t, http.StatusForbidden, do("Bearer "+student.AccessToken).Code)

	admin, _ := auth.Issue("a1", auth.RoleAdmin, issuer, key, time.Minute, time.Hour)
	w := do("bearer " + admin.AccessToken)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "a1", w.Body.String())
}

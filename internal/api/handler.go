package api

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/gin-gonic/gin"

	"courtside/internal/apperr"
	"courtside/internal/attendance"
	"courtside/internal/auth"
	"courtside/internal/balance"
	"courtside/internal/export"
	"courtside/internal/students"
)

// Handler holds the services the HTTP endpoints call.
type Handler struct {
	deps Deps
	now  func() time.Time
}

// ---------- Health ----------

func (h *Handler) Healthz(c *gin.Context) {
	ctx, cancel := context.WithTimeout(c.Request.Context(), 2*time.Second)
	defer cancel()

	checks := gin.H{}
	healthy := true
	for name, check := range h.deps.Health {
		ok := check(ctx)
		checks[name] = ok
		healthy = healthy && ok
	}
	status := http.StatusOK
	if !healthy {
		status = http.StatusServiceUnavailable
	}
	c.JSON(status, gin.H{"ok": healthy, "checks": checks})
}

// ---------- Auth ----------

type credentials struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

type tokenBody struct {
	RefreshToken string `json:"refresh_token" binding:"required"`
}

func (h *Handler) Register(c *gin.Context) {
	var in auth.RegisterInput
	if err := c.ShouldBindJSON(&in); err != nil {
		badRequest(c, err)
		return
	}
	sess, err := h.deps.Auth.Register(c.Request.Context(), in)
	if err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusCreated, sess)
}

func (h *Handler) Login(c *gin.Context) {
	var in credentials
	if err := c.ShouldBindJSON(&in); err != nil {
		badRequest(c, err)
		return
	}
	sess, err := h.deps.Auth.Login(c.Request.Context(), in.Email, in.Password)
	if err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusOK, sess)
}

func (h *Handler) Refresh(c *gin.Context) {
	var in tokenBody
	if err := c.ShouldBindJSON(&in); err != nil {
		badRequest(c, err)
		return
	}
	sess, err := h.deps.Auth.Refresh(c.Request.Context(), in.RefreshToken)
	if err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusOK, sess)
}

func (h *Handler) Logout(c *gin.Context) {
	var in tokenBody
	if err := c.ShouldBindJSON(&in); err != nil {
		badRequest(c, err)
		return
	}
	if err := h.deps.Auth.Logout(c.Request.Context(), in.RefreshToken); err != nil {
		fail(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

func (h *Handler) Me(c *gin.Context) {
	claims, _ := auth.ClaimsFrom(c)
	u, err := h.deps.Auth.Me(c.Request.Context(), claims)
	if err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusOK, u)
}

func (h *Handler) RequestPasswordReset(c *gin.Context) {
	var in struct {
		Email string `json:"email" binding:"required"`
	}
	if err := c.ShouldBindJSON(&in); err != nil {
		badRequest(c, err)
		return
	}
	if err := h.deps.Auth.RequestPasswordReset(c.Request.Context(), in.Email); err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusAccepted, gin.H{"message": "if the account exists a reset link has been sent"})
}

func (h *Handler) ResetPassword(c *gin.Context) {
	var in struct {
		Token    string `json:"token" binding:"required"`
		Password string `json:"password"`
	}
	if err := c.ShouldBindJSON(&in); err != nil {
		badRequest(c, err)
		return
	}
	if err := h.deps.Auth.ResetPassword(c.Request.Context(), in.Token, in.Password); err != nil {
		fail(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

// ---------- Dashboard ----------

func (h *Handler) Dashboard(c *gin.Context) {
	all, err := h.deps.Balance.All(c.Request.Context())
	if err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusOK, balance.Summarize(all))
}

// ---------- Students ----------

type studentView struct {
	balance.StudentWithClasses
	Level balance.Level `json:"level"`
}

func view(s balance.StudentWithClasses) studentView {
	return studentView{StudentWithClasses: s, Level: balance.Classify(s.RemainingClasses)}
}

func (h *Handler) ListStudents(c *gin.Context) {
	all, err := h.deps.Balance.All(c.Request.Context())
	if err != nil {
		fail(c, err)
		return
	}
	plain := make([]students.Student, len(all))
	for i, s := range all {
		plain[i] = s.Student
	}
	keep := map[string]bool{}
	for _, s := range students.Filter(plain, c.Query("q")) {
		keep[s.ID] = true
	}
	out := make([]studentView, 0, len(keep))
	for _, s := range all {
		if keep[s.ID] {
			out = append(out, view(s))
		}
	}
	c.JSON(http.StatusOK, out)
}

func (h *Handler) CreateStudent(c *gin.Context) {
	var in students.Input
	if err := c.ShouldBindJSON(&in); err != nil {
		badRequest(c, err)
		return
	}
	st, err := h.deps.Students.Create(c.Request.Context(), in)
	if err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusCreated, view(balance.StudentWithClasses{Student: st}))
}

func (h *Handler) GetStudent(c *gin.Context) {
	s, err := h.studentWithBalance(c.Request.Context(), c.Param("id"))
	if err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusOK, view(s))
}

func (h *Handler) UpdateStudent(c *gin.Context) {
	var in students.Input
	if err := c.ShouldBindJSON(&in); err != nil {
		badRequest(c, err)
		return
	}
	if _, err := h.deps.Students.Update(c.Request.Context(), c.Param("id"), in); err != nil {
		fail(c, err)
		return
	}
	s, err := h.studentWithBalance(c.Request.Context(), c.Param("id"))
	if err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusOK, view(s))
}

// DeleteStudent removes a student with all purchases and attendance. The
// client must pass confirm=true.
func (h *Handler) DeleteStudent(c *gin.Context) {
	if !confirmed(c) {
		return
	}
	if err := h.deps.Students.Delete(c.Request.Context(), c.Param("id")); err != nil {
		fail(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

func (h *Handler) StudentPurchases(c *gin.Context) {
	if _, err := h.deps.Students.Get(c.Request.Context(), c.Param("id")); err != nil {
		fail(c, err)
		return
	}
	ps, err := h.deps.Students.Purchases(c.Request.Context(), c.Param("id"))
	if err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusOK, ps)
}

func (h *Handler) AddPurchase(c *gin.Context) {
	var in students.PurchaseInput
	if err := c.ShouldBindJSON(&in); err != nil {
		badRequest(c, err)
		return
	}
	p, err := h.deps.Students.AddPurchase(c.Request.Context(), in)
	if err != nil {
		fail(c, err)
		return
	}
	s, err := h.studentWithBalance(c.Request.Context(), p.StudentID)
	if err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusCreated, gin.H{"purchase": p, "balance": s.Summary})
}

func (h *Handler) studentWithBalance(ctx context.Context, id string) (balance.StudentWithClasses, error) {
	s, err := h.deps.Balance.ForStudent(ctx, id)
	if err != nil {
		return balance.StudentWithClasses{}, err
	}
	if s == nil {
		return balance.StudentWithClasses{}, apperr.ErrNotFound
	}
	return *s, nil
}

// ---------- Attendance ----------

// Roster lists students with their balances for the sign-in screen.
func (h *Handler) Roster(c *gin.Context) {
	all, err := h.deps.Balance.All(c.Request.Context())
	if err != nil {
		fail(c, err)
		return
	}
	out := make([]studentView, len(all))
	for i, s := range all {
		out[i] = view(s)
	}
	c.JSON(http.StatusOK, out)
}

func (h *Handler) ListAttendances(c *gin.Context) {
	limit, ok := limitParam(c)
	if !ok {
		return
	}
	rows, err := h.deps.Attendance.ListWithStudents(c.Request.Context(), c.Query("student_id"), limit)
	if err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusOK, rows)
}

func (h *Handler) StudentAttendances(c *gin.Context) {
	if _, err := h.deps.Students.Get(c.Request.Context(), c.Param("id")); err != nil {
		fail(c, err)
		return
	}
	rows, err := h.deps.Attendance.ListByStudent(c.Request.Context(), c.Param("id"))
	if err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusOK, rows)
}

func (h *Handler) RecordAttendance(c *gin.Context) {
	var in attendance.RecordInput
	if err := c.ShouldBindJSON(&in); err != nil {
		badRequest(c, err)
		return
	}
	res, err := h.deps.Attendance.Record(c.Request.Context(), in)
	if err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusCreated, res)
}

type editBody struct {
	attendance.Patch
	Version int `json:"version"`
}

// EditAttendance applies same-day edits at once. Edits that move the record
// to another date answer 202 with an edit session to confirm or cancel.
func (h *Handler) EditAttendance(c *gin.Context) {
	var in editBody
	if err := c.ShouldBindJSON(&in); err != nil {
		badRequest(c, err)
		return
	}
	out, err := h.deps.Attendance.Propose(c.Request.Context(), c.Param("id"), in.Patch, in.Version)
	if err != nil {
		fail(c, err)
		return
	}
	status := http.StatusOK
	if out.Status == attendance.OutcomePending {
		status = http.StatusAccepted
	}
	c.JSON(status, out)
}

func (h *Handler) ConfirmEdit(c *gin.Context) {
	out, err := h.deps.Attendance.Confirm(c.Request.Context(), c.Param("session"))
	if err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusOK, out)
}

func (h *Handler) CancelEdit(c *gin.Context) {
	out, err := h.deps.Attendance.Cancel(c.Request.Context(), c.Param("session"))
	if err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusOK, out)
}

func (h *Handler) DeleteAttendance(c *gin.Context) {
	if !confirmed(c) {
		return
	}
	if err := h.deps.Attendance.Delete(c.Request.Context(), c.Param("id")); err != nil {
		fail(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

// ---------- Export ----------

func (h *Handler) ExportCSV(c *gin.Context) {
	rows, name, ok := h.exportRows(c)
	if !ok {
		return
	}
	var buf bytes.Buffer
	if err := export.CSV(&buf, rows, name == "", h.deps.Location); err != nil {
		fail(c, err)
		return
	}
	c.Header("Content-Disposition", fmt.Sprintf("attachment; filename=%q", export.Filename(name, h.now())))
	c.Data(http.StatusOK, "text/csv; charset=utf-8", buf.Bytes())
}

func (h *Handler) PrintAttendances(c *gin.Context) {
	rows, name, ok := h.exportRows(c)
	if !ok {
		return
	}
	var buf bytes.Buffer
	if err := export.PrintHTML(&buf, name, rows, name == "", h.deps.Location, h.now()); err != nil {
		fail(c, err)
		return
	}
	c.Data(http.StatusOK, "text/html; charset=utf-8", buf.Bytes())
}

// exportRows loads the history to export. With student_id the export covers
// that student and name is set; otherwise it covers everyone.
func (h *Handler) exportRows(c *gin.Context) (rows []attendance.WithStudent, name string, ok bool) {
	ctx := c.Request.Context()
	id := strings.TrimSpace(c.Query("student_id"))
	if id != "" {
		st, err := h.deps.Students.Get(ctx, id)
		if err != nil {
			fail(c, err)
			return nil, "", false
		}
		name = st.Name
	}
	rows, err := h.deps.Attendance.ListWithStudents(ctx, id, 0)
	if err != nil {
		fail(c, err)
		return nil, "", false
	}
	return rows, name, true
}

// ---------- helpers ----------

// confirmed answers 428 unless the request carries confirm=true.
func confirmed(c *gin.Context) bool {
	if ok, _ := strconv.ParseBool(c.Query("confirm")); ok {
		return true
	}
	c.AbortWithStatusJSON(http.StatusPreconditionRequired, gin.H{"error": "this deletion cannot be undone, repeat with confirm=true"})
	return false
}

func limitParam(c *gin.Context) (int, bool) {
	raw := c.Query("limit")
	if raw == "" {
		return 0, true
	}
	n, err := strconv.Atoi(raw)
	if err != nil || n < 0 {
		badRequest(c, errors.New("limit must be a non-negative integer"))
		return 0, false
	}
	return n, true
}

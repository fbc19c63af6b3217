package http

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/fjod/template_store/pkg/logger"
	"github.com/fjod/template_store/storefront-service/domain"
	"github.com/fjod/template_store/storefront-service/internal/service"
	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"
)

const (
	msgPurchaseOK       = "Покупка успешно завершена"
	msgTemplateNotFound = "Шаблон не найден"
	msgNotPurchased     = "У вас нет прав для скачивания этого шаблона"
	msgDownloadReady    = "Шаблон \"%s\" готов к скачиванию!"
	dashboardDateLayout = "02.01.2006"
)

type Purchaser interface {
	Purchase(ctx context.Context, userID, templateID int64, idempotencyKey string) (*service.PurchaseResult, error)
	Download(ctx context.Context, userID, templateID int64) (*domain.Template, error)
	Dashboard(ctx context.Context, userID int64) ([]*domain.PurchasedTemplate, error)
}

type PurchaseHandler struct {
	purchases          Purchaser
	timeout            time.Duration
	filesDir           string
	maxRequestBodySize int64
	log                *zap.Logger
}

func NewPurchaseHandler(purchases Purchaser, timeout time.Duration, filesDir string, log *zap.Logger) *PurchaseHandler {
	return &PurchaseHandler{
		purchases:          purchases,
		timeout:            timeout,
		filesDir:           filesDir,
		maxRequestBodySize: 1 << 20, // 1MB
		log:                log,
	}
}

type PurchaseRequestDTO struct {
	TemplateID     int64  `json:"template_id"`
	IdempotencyKey string `json:"idempotency_key,omitempty"`
}

type PurchaseResponse struct {
	Success       bool   `json:"success"`
	Message       string `json:"message"`
	TransactionID string `json:"transaction_id,omitempty"`
	TemplateName  string `json:"template_name,omitempty"`
}

type DownloadResponse struct {
	Success      bool   `json:"success"`
	Message      string `json:"message"`
	TemplateName string `json:"template_name,omitempty"`
	DownloadURL  string `json:"download_url,omitempty"`
}

type PurchasedTemplateDTO struct {
	ID           int64  `json:"id"`
	Name         string `json:"name"`
	PurchaseDate string `json:"purchase_date"`
}

type DashboardResponse struct {
	Success   bool                   `json:"success"`
	Templates []PurchasedTemplateDTO `json:"templates"`
}

// POST /api/purchase
func (h *PurchaseHandler) Purchase(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), h.timeout)
	defer cancel()

	sess := getSession(r.Context())
	if sess == nil {
		respondError(w, h.log, http.StatusUnauthorized, msgUnauthorized)
		return
	}

	r.Body = http.MaxBytesReader(w, r.Body, h.maxRequestBodySize)
	var req PurchaseRequestDTO
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, h.log, http.StatusBadRequest, msgBadRequest)
		return
	}
	if req.TemplateID <= 0 {
		respondError(w, h.log, http.StatusNotFound, msgTemplateNotFound)
		return
	}

	res, err := h.purchases.Purchase(ctx, sess.UserID, req.TemplateID, req.IdempotencyKey)
	if errors.Is(err, service.ErrTemplateNotFound) {
		respondError(w, h.log, http.StatusNotFound, msgTemplateNotFound)
		return
	}
	if err != nil {
		logger.WithContext(ctx, h.log).Error("purchase failed",
			zap.Int64("user_id", sess.UserID), zap.Int64("template_id", req.TemplateID), zap.Error(err))
		respondError(w, h.log, http.StatusInternalServerError, msgInternalError)
		return
	}

	status := http.StatusCreated
	if res.Replayed {
		status = http.StatusOK
	}
	respondJSON(w, h.log, status, PurchaseResponse{
		Success:       true,
		Message:       msgPurchaseOK,
		TransactionID: res.Purchase.TransactionID,
		TemplateName:  res.Template.Name,
	})
}

// GET /api/download/{template_id}
func (h *PurchaseHandler) Download(w http.ResponseWriter, r *http.Request) {
	template, ok := h.ownedTemplate(w, r)
	if !ok {
		return
	}

	respondJSON(w, h.log, http.StatusOK, DownloadResponse{
		Success:      true,
		Message:      fmt.Sprintf(msgDownloadReady, template.Name),
		TemplateName: template.Name,
		DownloadURL:  fmt.Sprintf("/api/download/%d/archive", template.ID),
	})
}

// GET /api/download/{template_id}/archive streams the template archive.
func (h *PurchaseHandler) Archive(w http.ResponseWriter, r *http.Request) {
	template, ok := h.ownedTemplate(w, r)
	if !ok {
		return
	}

	path, err := h.archivePath(template)
	if err != nil {
		logger.WithContext(r.Context(), h.log).Warn("template archive unavailable",
			zap.Int64("template_id", template.ID), zap.Error(err))
		respondError(w, h.log, http.StatusNotFound, msgTemplateNotFound)
		return
	}

	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", filepath.Base(path)))
	http.ServeFile(w, r, path)
}

// GET /dashboard
func (h *PurchaseHandler) Dashboard(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), h.timeout)
	defer cancel()

	sess := getSession(r.Context())
	if sess == nil {
		respondError(w, h.log, http.StatusUnauthorized, msgUnauthorized)
		return
	}

	purchased, err := h.purchases.Dashboard(ctx, sess.UserID)
	if err != nil {
		logger.WithContext(ctx, h.log).Error("dashboard failed", zap.Int64("user_id", sess.UserID), zap.Error(err))
		respondError(w, h.log, http.StatusInternalServerError, msgInternalError)
		return
	}

	dtos := make([]PurchasedTemplateDTO, 0, len(purchased))
	for _, p := range purchased {
		dtos = append(dtos, PurchasedTemplateDTO{
			ID:           p.ID,
			Name:         p.Name,
			PurchaseDate: p.PurchaseDate.Format(dashboardDateLayout),
		})
	}
	respondJSON(w, h.log, http.StatusOK, DashboardResponse{Success: true, Templates: dtos})
}

func (h *PurchaseHandler) ownedTemplate(w http.ResponseWriter, r *http.Request) (*domain.Template, bool) {
	ctx, cancel := context.WithTimeout(r.Context(), h.timeout)
	defer cancel()

	sess := getSession(r.Context())
	if sess == nil {
		respondError(w, h.log, http.StatusUnauthorized, msgUnauthorized)
		return nil, false
	}

	templateID, err := strconv.ParseInt(chi.URLParam(r, "template_id"), 10, 64)
	if err != nil || templateID <= 0 {
		respondError(w, h.log, http.StatusNotFound, msgTemplateNotFound)
		return nil, false
	}

	template, err := h.purchases.Download(ctx, sess.UserID, templateID)
	switch {
	case errors.Is(err, service.ErrNotPurchased):
		respondError(w, h.log, http.StatusForbidden, msgNotPurchased)
		return nil, false
	case errors.Is(err, service.ErrTemplateNotFound):
		respondError(w, h.log, http.StatusNotFound, msgTemplateNotFound)
		return nil, false
	case err != nil:
		logger.WithContext(ctx, h.log).Error("download check failed",
			zap.Int64("user_id", sess.UserID), zap.Int64("template_id", templateID), zap.Error(err))
		respondError(w, h.log, http.StatusInternalServerError, msgInternalError)
		return nil, false
	}
	return template, true
}

func (h *PurchaseHandler) archivePath(template *domain.Template) (string, error) {
	if h.filesDir == "" {
		return "", errors.New("files directory not configured")
	}

	root, err := filepath.Abs(h.filesDir)
	if err != nil {
		return "", err
	}
	path := filepath.Join(root, filepath.Clean("/"+template.FilePath))
	if !strings.HasPrefix(path, root+string(filepath.Separator)) {
		return "", fmt.Errorf("archive path %q escapes files directory", template.FilePath)
	}
	if _, err := os.Stat(path); err != nil {
		return "", err
	}
	return path, nil
}

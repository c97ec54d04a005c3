package loyalty

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strconv"
	"strings"

	"github.com/appetiteclub/apt"
	"github.com/appetiteclub/apt/telemetry"
	"github.com/appetiteclub/epicure/pkg/enums/source"
	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
)

const (
	MaxBodyBytes = 1 << 20

	AdminMobileHeader    = "X-Admin-Mobile"
	IdempotencyKeyHeader = "Idempotency-Key"
)

type Handler struct {
	logger  apt.Logger
	config  *apt.Config
	tlm     *telemetry.HTTP
	service *Service
	feed    *ActivityFeed
}

type HandlerDeps struct {
	Service      *Service
	ActivityFeed *ActivityFeed
}

func NewHandler(hd HandlerDeps, config *apt.Config, logger apt.Logger) *Handler {
	if logger == nil {
		logger = apt.NewNoopLogger()
	}
	feed := hd.ActivityFeed
	if feed == nil {
		feed = NewActivityFeed(nil, 0, logger)
	}
	return &Handler{
		logger:  logger,
		config:  config,
		tlm:     telemetry.NewHTTP(),
		service: hd.Service,
		feed:    feed,
	}
}

func (h *Handler) RegisterRoutes(r chi.Router) {
	r.Post("/send-otp", h.SendOTP)
	r.Post("/verify-otp", h.VerifyOTP)
	r.Get("/check-customer/{mobile}", h.CheckCustomer)
	r.Post("/verify-staff-code", h.VerifyStaffCode)

	r.Get("/menu/items", h.ListMenuItems)
	r.Get("/roadmaps", h.ListRoadmaps)
	r.Post("/bill/match", h.MatchBill)

	r.Route("/customer/{id}", func(r chi.Router) {
		r.Get("/", h.GetCustomer)
		r.Get("/progress", h.GetProgress)
		r.Post("/purchase", h.RecordPurchase)
		r.Post("/scan-bill", h.ScanBill)
		r.Post("/complete-roadmap", h.CompleteRoadmap)
	})

	r.Route("/barista", func(r chi.Router) {
		r.Get("/search/{mobile}", h.SearchCustomer)
		r.Post("/add-purchase", h.BaristaAddPurchase)
	})

	r.Route("/admin", func(r chi.Router) {
		r.Use(h.adminOnly)
		r.Get("/customers", h.ListCustomers)
		r.Post("/customer/{mobile}/purchase", h.AdminPurchase)
		r.Post("/add-admin", h.AddAdmin)
		r.Post("/remove-admin", h.RemoveAdmin)
		r.Get("/list-admins", h.ListAdmins)
		r.Get("/activity", h.ListActivity)
	})
}

// Responses

type successResponse struct {
	Success bool   `json:"success"`
	Message string `json:"message,omitempty"`
}

type sendOTPResponse struct {
	Success bool   `json:"success"`
	Message string `json:"message"`
	OTP     string `json:"otp,omitempty"`
}

type loginResponse struct {
	Success  bool            `json:"success"`
	Customer CustomerSummary `json:"customer"`
	Created  bool            `json:"created"`
}

type customerResponse struct {
	Success  bool      `json:"success"`
	Customer *Customer `json:"customer"`
}

type purchaseResponse struct {
	Success     bool      `json:"success"`
	Customer    *Customer `json:"customer"`
	PurchaseID  string    `json:"purchaseId,omitempty"`
	NewRoadmaps []Roadmap `json:"newRoadmaps"`
}

type checkCustomerResponse struct {
	Exists    bool `json:"exists"`
	IsNewUser bool `json:"isNewUser"`
}

type staffCodeResponse struct {
	Success bool `json:"success"`
	Valid   bool `json:"valid"`
}

type matchResponse struct {
	Success  bool     `json:"success"`
	Items    []string `json:"items"`
	BillHash string   `json:"billHash,omitempty"`
}

type progressResponse struct {
	Success  bool              `json:"success"`
	Progress []RoadmapProgress `json:"progress"`
}

type flaggedErrorResponse struct {
	Success     bool   `json:"success"`
	Error       string `json:"error"`
	IsNewUser   bool   `json:"isNewUser,omitempty"`
	IsDuplicate bool   `json:"isDuplicate,omitempty"`
}

// Requests

type SendOTPRequest struct {
	Mobile string `json:"mobile"`
}

type VerifyOTPRequest struct {
	Mobile string `json:"mobile"`
	OTP    string `json:"otp"`
	Name   string `json:"name,omitempty"`
}

type PurchaseRequest struct {
	Items []string `json:"items"`
}

type ScanBillRequest struct {
	Items       []string `json:"items"`
	ScannedText string   `json:"scannedText,omitempty"`
	BillHash    string   `json:"billHash,omitempty"`
	StaffCode   string   `json:"staffCode,omitempty"`
}

type BaristaPurchaseRequest struct {
	Mobile string   `json:"mobile"`
	Items  []string `json:"items"`
}

type CompleteRoadmapRequest struct {
	RoadmapID string `json:"roadmapId"`
	Badge     string `json:"badge,omitempty"`
}

type AdminPurchaseRequest struct {
	Action     string   `json:"action"`
	Items      []string `json:"items,omitempty"`
	PurchaseID string   `json:"purchaseId,omitempty"`
}

type AdminGrantRequest struct {
	Mobile string `json:"mobile"`
}

type StaffCodeRequest struct {
	Code string `json:"code"`
}

type MatchBillRequest struct {
	Text string `json:"text"`
}

// Login

func (h *Handler) SendOTP(w http.ResponseWriter, r *http.Request) {
	w, r, finish := h.tlm.Start(w, r, "Handler.SendOTP")
	defer finish()

	log := h.log(r)

	req, ok := decodePayload[SendOTPRequest](w, r, log)
	if !ok {
		return
	}

	code, err := h.service.SendOTP(r.Context(), req.Mobile)
	if err != nil {
		h.respondServiceError(w, log, err, "Could not send OTP")
		return
	}

	resp := sendOTPResponse{Success: true, Message: "OTP sent successfully"}
	if h.service.Settings().DemoMode {
		resp.OTP = code
	}
	respondJSON(w, http.StatusOK, resp)
}

func (h *Handler) VerifyOTP(w http.ResponseWriter, r *http.Request) {
	w, r, finish := h.tlm.Start(w, r, "Handler.VerifyOTP")
	defer finish()

	log := h.log(r)

	req, ok := decodePayload[VerifyOTPRequest](w, r, log)
	if !ok {
		return
	}

	res, err := h.service.VerifyOTP(r.Context(), req.Mobile, req.OTP, req.Name)
	if err != nil {
		if errors.Is(err, ErrNameRequired) {
			log.Debug("name required for new customer")
			respondJSON(w, http.StatusBadRequest, flaggedErrorResponse{
				Error:     "Name is required for new users",
				IsNewUser: true,
			})
			return
		}
		h.respondServiceError(w, log, err, "Could not verify OTP")
		return
	}

	respondJSON(w, http.StatusOK, loginResponse{
		Success:  true,
		Customer: res.Customer.Summary(),
		Created:  res.Created,
	})
}

func (h *Handler) CheckCustomer(w http.ResponseWriter, r *http.Request) {
	w, r, finish := h.tlm.Start(w, r, "Handler.CheckCustomer")
	defer finish()

	log := h.log(r)

	exists, err := h.service.CustomerExists(r.Context(), chi.URLParam(r, "mobile"))
	if err != nil {
		h.respondServiceError(w, log, err, "Could not check customer")
		return
	}
	respondJSON(w, http.StatusOK, checkCustomerResponse{Exists: exists, IsNewUser: !exists})
}

func (h *Handler) VerifyStaffCode(w http.ResponseWriter, r *http.Request) {
	w, r, finish := h.tlm.Start(w, r, "Handler.VerifyStaffCode")
	defer finish()

	log := h.log(r)

	req, ok := decodePayload[StaffCodeRequest](w, r, log)
	if !ok {
		return
	}

	valid := h.service.VerifyStaffCode(req.Code)
	if !valid {
		log.Info("invalid staff code attempt")
	}
	respondJSON(w, http.StatusOK, staffCodeResponse{Success: true, Valid: valid})
}

// Catalog

func (h *Handler) ListMenuItems(w http.ResponseWriter, r *http.Request) {
	w, r, finish := h.tlm.Start(w, r, "Handler.ListMenuItems")
	defer finish()

	items := Catalog()
	if category := r.URL.Query().Get("category"); category != "" {
		items = CatalogByCategory(category)
	}
	apt.RespondCollection(w, items, "menu-item")
}

func (h *Handler) ListRoadmaps(w http.ResponseWriter, r *http.Request) {
	w, r, finish := h.tlm.Start(w, r, "Handler.ListRoadmaps")
	defer finish()

	apt.RespondCollection(w, h.service.RoadmapDefinitions(), "roadmap")
}

func (h *Handler) MatchBill(w http.ResponseWriter, r *http.Request) {
	w, r, finish := h.tlm.Start(w, r, "Handler.MatchBill")
	defer finish()

	log := h.log(r)

	req, ok := decodePayload[MatchBillRequest](w, r, log)
	if !ok {
		return
	}
	if strings.TrimSpace(req.Text) == "" {
		apt.RespondError(w, http.StatusBadRequest, "text is required")
		return
	}

	respondJSON(w, http.StatusOK, matchResponse{
		Success:  true,
		Items:    MatchItems(req.Text),
		BillHash: BillHash(req.Text),
	})
}

// Customer

func (h *Handler) GetCustomer(w http.ResponseWriter, r *http.Request) {
	w, r, finish := h.tlm.Start(w, r, "Handler.GetCustomer")
	defer finish()

	log := h.log(r)

	id, ok := h.parseCustomerID(w, r, log)
	if !ok {
		return
	}

	c, err := h.service.GetCustomer(r.Context(), ByID(id))
	if err != nil {
		h.respondServiceError(w, log, err, "Could not load customer")
		return
	}
	respondJSON(w, http.StatusOK, customerResponse{Success: true, Customer: c})
}

func (h *Handler) GetProgress(w http.ResponseWriter, r *http.Request) {
	w, r, finish := h.tlm.Start(w, r, "Handler.GetProgress")
	defer finish()

	log := h.log(r)

	id, ok := h.parseCustomerID(w, r, log)
	if !ok {
		return
	}

	progress, err := h.service.Progress(r.Context(), ByID(id))
	if err != nil {
		h.respondServiceError(w, log, err, "Could not load progress")
		return
	}
	respondJSON(w, http.StatusOK, progressResponse{Success: true, Progress: progress})
}

// RecordPurchase is the legacy self-service path. It records scanner
// purchases without a bill fingerprint.
func (h *Handler) RecordPurchase(w http.ResponseWriter, r *http.Request) {
	w, r, finish := h.tlm.Start(w, r, "Handler.RecordPurchase")
	defer finish()

	log := h.log(r)

	id, ok := h.parseCustomerID(w, r, log)
	if !ok {
		return
	}

	req, ok := decodePayload[PurchaseRequest](w, r, log)
	if !ok {
		return
	}

	res, err := h.service.RecordPurchase(r.Context(), ByID(id), PurchaseInput{
		Items:          req.Items,
		Source:         source.Sources.Scanner.Code(),
		IdempotencyKey: r.Header.Get(IdempotencyKeyHeader),
	})
	if err != nil {
		h.respondServiceError(w, log, err, "Could not record purchase")
		return
	}
	respondJSON(w, http.StatusOK, purchaseResponseFor(res))
}

func (h *Handler) ScanBill(w http.ResponseWriter, r *http.Request) {
	w, r, finish := h.tlm.Start(w, r, "Handler.ScanBill")
	defer finish()

	log := h.log(r)

	id, ok := h.parseCustomerID(w, r, log)
	if !ok {
		return
	}

	req, ok := decodePayload[ScanBillRequest](w, r, log)
	if !ok {
		return
	}

	res, err := h.service.ScanBill(r.Context(), id, ScanRequest{
		Items:          req.Items,
		ScannedText:    req.ScannedText,
		BillHash:       req.BillHash,
		StaffCode:      req.StaffCode,
		IdempotencyKey: r.Header.Get(IdempotencyKeyHeader),
	})
	if err != nil {
		if errors.Is(err, ErrDuplicateBill) {
			log.Info("duplicate bill scan", "customer_id", id.String())
			respondJSON(w, http.StatusConflict, flaggedErrorResponse{
				Error:       "This bill has already been scanned",
				IsDuplicate: true,
			})
			return
		}
		h.respondServiceError(w, log, err, "Could not process bill")
		return
	}
	respondJSON(w, http.StatusOK, purchaseResponseFor(res))
}

func (h *Handler) CompleteRoadmap(w http.ResponseWriter, r *http.Request) {
	w, r, finish := h.tlm.Start(w, r, "Handler.CompleteRoadmap")
	defer finish()

	log := h.log(r)

	id, ok := h.parseCustomerID(w, r, log)
	if !ok {
		return
	}

	req, ok := decodePayload[CompleteRoadmapRequest](w, r, log)
	if !ok {
		return
	}

	c, err := h.service.CompleteRoadmap(r.Context(), id, req.RoadmapID)
	if err != nil {
		h.respondServiceError(w, log, err, "Could not complete roadmap")
		return
	}
	respondJSON(w, http.StatusOK, customerResponse{Success: true, Customer: c})
}

// Barista

func (h *Handler) SearchCustomer(w http.ResponseWriter, r *http.Request) {
	w, r, finish := h.tlm.Start(w, r, "Handler.SearchCustomer")
	defer finish()

	log := h.log(r)

	c, err := h.service.GetCustomer(r.Context(), ByMobile(chi.URLParam(r, "mobile")))
	if err != nil {
		h.respondServiceError(w, log, err, "Could not search customer")
		return
	}
	respondJSON(w, http.StatusOK, customerResponse{Success: true, Customer: c})
}

func (h *Handler) BaristaAddPurchase(w http.ResponseWriter, r *http.Request) {
	w, r, finish := h.tlm.Start(w, r, "Handler.BaristaAddPurchase")
	defer finish()

	log := h.log(r)

	req, ok := decodePayload[BaristaPurchaseRequest](w, r, log)
	if !ok {
		return
	}

	res, err := h.service.RecordPurchase(r.Context(), ByMobile(req.Mobile), PurchaseInput{
		Items:          req.Items,
		Source:         source.Sources.Barista.Code(),
		IdempotencyKey: r.Header.Get(IdempotencyKeyHeader),
	})
	if err != nil {
		h.respondServiceError(w, log, err, "Could not record purchase")
		return
	}
	respondJSON(w, http.StatusOK, purchaseResponseFor(res))
}

// Admin

func (h *Handler) adminOnly(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		log := h.log(r)
		if err := h.service.AuthorizeAdmin(r.Context(), r.Header.Get(AdminMobileHeader)); err != nil {
			if errors.Is(err, ErrUnauthorized) {
				log.Info("admin access denied")
				apt.RespondError(w, http.StatusForbidden, "Admin access required")
				return
			}
			h.respondServiceError(w, log, err, "Could not authorize request")
			return
		}
		next.ServeHTTP(w, r)
	})
}

func (h *Handler) ListCustomers(w http.ResponseWriter, r *http.Request) {
	w, r, finish := h.tlm.Start(w, r, "Handler.ListCustomers")
	defer finish()

	log := h.log(r)

	customers, err := h.service.ListCustomers(r.Context())
	if err != nil {
		h.respondServiceError(w, log, err, "Could not list customers")
		return
	}
	apt.RespondCollection(w, customers, "customer")
}

func (h *Handler) AdminPurchase(w http.ResponseWriter, r *http.Request) {
	w, r, finish := h.tlm.Start(w, r, "Handler.AdminPurchase")
	defer finish()

	log := h.log(r)
	ctx := r.Context()
	actor := r.Header.Get(AdminMobileHeader)
	ref := ByMobile(chi.URLParam(r, "mobile"))

	req, ok := decodePayload[AdminPurchaseRequest](w, r, log)
	if !ok {
		return
	}

	switch req.Action {
	case "add":
		res, err := h.service.RecordPurchase(ctx, ref, PurchaseInput{
			Items:          req.Items,
			Source:         source.Sources.Manual.Code(),
			IdempotencyKey: r.Header.Get(IdempotencyKeyHeader),
		})
		if err != nil {
			h.respondServiceError(w, log, err, "Could not record purchase")
			return
		}
		log.Info("admin added purchase", "actor", actor, "customer_id", res.Customer.ID.String())
		respondJSON(w, http.StatusOK, purchaseResponseFor(res))

	case "remove":
		if strings.TrimSpace(req.PurchaseID) == "" {
			apt.RespondError(w, http.StatusBadRequest, "purchaseId is required")
			return
		}
		var (
			c   *Customer
			err error
		)
		purchaseID, perr := uuid.Parse(req.PurchaseID)
		if perr != nil {
			// No stored purchase can carry a malformed id.
			c, err = h.service.GetCustomer(ctx, ref)
		} else {
			c, err = h.service.RemovePurchase(ctx, ref, purchaseID, actor)
		}
		if err != nil {
			h.respondServiceError(w, log, err, "Could not remove purchase")
			return
		}
		respondJSON(w, http.StatusOK, customerResponse{Success: true, Customer: c})

	default:
		log.Debug("unknown admin purchase action", "action", req.Action)
		apt.RespondError(w, http.StatusBadRequest, "action must be add or remove")
	}
}

func (h *Handler) AddAdmin(w http.ResponseWriter, r *http.Request) {
	w, r, finish := h.tlm.Start(w, r, "Handler.AddAdmin")
	defer finish()

	log := h.log(r)

	req, ok := decodePayload[AdminGrantRequest](w, r, log)
	if !ok {
		return
	}

	if err := h.service.GrantAdmin(r.Context(), r.Header.Get(AdminMobileHeader), req.Mobile); err != nil {
		h.respondServiceError(w, log, err, "Could not add admin")
		return
	}
	respondJSON(w, http.StatusOK, successResponse{Success: true, Message: "Admin added"})
}

func (h *Handler) RemoveAdmin(w http.ResponseWriter, r *http.Request) {
	w, r, finish := h.tlm.Start(w, r, "Handler.RemoveAdmin")
	defer finish()

	log := h.log(r)

	req, ok := decodePayload[AdminGrantRequest](w, r, log)
	if !ok {
		return
	}

	if err := h.service.RevokeAdmin(r.Context(), r.Header.Get(AdminMobileHeader), req.Mobile); err != nil {
		h.respondServiceError(w, log, err, "Could not remove admin")
		return
	}
	respondJSON(w, http.StatusOK, successResponse{Success: true, Message: "Admin removed"})
}

func (h *Handler) ListAdmins(w http.ResponseWriter, r *http.Request) {
	w, r, finish := h.tlm.Start(w, r, "Handler.ListAdmins")
	defer finish()

	log := h.log(r)

	admins, err := h.service.ListAdmins(r.Context())
	if err != nil {
		h.respondServiceError(w, log, err, "Could not list admins")
		return
	}
	apt.RespondCollection(w, admins, "admin")
}

func (h *Handler) ListActivity(w http.ResponseWriter, r *http.Request) {
	w, r, finish := h.tlm.Start(w, r, "Handler.ListActivity")
	defer finish()

	limit := 50
	if v := r.URL.Query().Get("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n <= 0 {
			apt.RespondError(w, http.StatusBadRequest, "limit must be a positive number")
			return
		}
		limit = n
	}
	apt.RespondCollection(w, h.feed.Recent(limit), "activity")
}

// Helpers

func purchaseResponseFor(res *PurchaseResult) purchaseResponse {
	resp := purchaseResponse{
		Success:     true,
		Customer:    res.Customer,
		NewRoadmaps: res.NewRoadmaps,
	}
	if resp.NewRoadmaps == nil {
		resp.NewRoadmaps = []Roadmap{}
	}
	if res.Purchase != nil {
		resp.PurchaseID = res.Purchase.ID.String()
	}
	return resp
}

func (h *Handler) parseCustomerID(w http.ResponseWriter, r *http.Request, log apt.Logger) (uuid.UUID, bool) {
	idStr := chi.URLParam(r, "id")
	id, err := uuid.Parse(idStr)
	if err != nil {
		log.Debug("invalid customer id", "id", idStr)
		apt.RespondError(w, http.StatusNotFound, "Customer not found")
		return uuid.Nil, false
	}
	return id, true
}

// respondServiceError maps service errors to HTTP statuses. Unexpected
// errors are logged and answered with fallback.
func (h *Handler) respondServiceError(w http.ResponseWriter, log apt.Logger, err error, fallback string) {
	switch {
	case errors.Is(err, ErrDuplicateBill):
		apt.RespondError(w, http.StatusConflict, "This bill has already been scanned")
	case errors.Is(err, ErrNotFound):
		log.Debug("resource not found", "error", err)
		apt.RespondError(w, http.StatusNotFound, notFoundMessage(err))
	case errors.Is(err, ErrUnauthorized):
		log.Info("unauthorized request", "error", err)
		apt.RespondError(w, http.StatusForbidden, publicMessage(err, ErrUnauthorized))
	case errors.Is(err, ErrExpired):
		apt.RespondError(w, http.StatusBadRequest, publicMessage(err, ErrExpired))
	case errors.Is(err, ErrInvalidArgument):
		log.Debug("invalid request", "error", err)
		apt.RespondError(w, http.StatusBadRequest, publicMessage(err, ErrInvalidArgument))
	case errors.Is(err, ErrMasterAdmin):
		apt.RespondError(w, http.StatusBadRequest, "Cannot remove master admin")
	default:
		log.Error(strings.ToLower(fallback), "error", err)
		apt.RespondError(w, http.StatusInternalServerError, fallback)
	}
}

func notFoundMessage(err error) string {
	if errors.Is(err, ErrRoadmapNotFound) {
		return "Roadmap not found"
	}
	return "Customer not found"
}

// publicMessage drops the sentinel prefix from a wrapped error.
func publicMessage(err, sentinel error) string {
	msg := strings.TrimPrefix(err.Error(), sentinel.Error()+": ")
	if msg == "" {
		return sentinel.Error()
	}
	return strings.ToUpper(msg[:1]) + msg[1:]
}

func respondJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}

func decodePayload[T any](w http.ResponseWriter, r *http.Request, log apt.Logger) (T, bool) {
	var req T
	r.Body = http.MaxBytesReader(w, r.Body, MaxBodyBytes)
	defer r.Body.Close()

	body, err := io.ReadAll(r.Body)
	if err != nil {
		log.Debug("failed to read request body", "error", err)
		apt.RespondError(w, http.StatusBadRequest, "Failed to read request body")
		return req, false
	}

	if err := json.Unmarshal(body, &req); err != nil {
		log.Debug("failed to decode request body", "error", err)
		apt.RespondError(w, http.StatusBadRequest, "Invalid JSON in request body")
		return req, false
	}

	return req, true
}

func (h *Handler) log(r *http.Request) apt.Logger {
	return h.logger.With(
		"request_id", apt.RequestIDFrom(r.Context()),
		"method", r.Method,
		"path", r.URL.Path,
	)
}

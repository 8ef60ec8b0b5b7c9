// Package api exposes the visibility run engine over HTTP.
package api

import (
	"context"
	"encoding/csv"
	"fmt"
	"net/http"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/jonesrussell/north-cloud/visibility/internal/database"
	"github.com/jonesrussell/north-cloud/visibility/internal/domain"
	"github.com/jonesrussell/north-cloud/visibility/internal/domainutil"
	"github.com/jonesrussell/north-cloud/visibility/internal/logger"
	"github.com/jonesrussell/north-cloud/visibility/internal/orchestrator"
)

const (
	defaultResultLimit = 100
	maxResultLimit     = 1000
	topDomainsLimit    = 10
	topIntentsLimit    = 5
	intentPreviewLimit = 10
	statsWindow        = 24 * time.Hour
)

// RunReader is the run query surface the handlers need.
type RunReader interface {
	GetByID(ctx context.Context, id string) (*domain.Run, error)
	LatestByAudit(ctx context.Context, auditID string) (*domain.Run, error)
	Stats(ctx context.Context, window time.Duration) (*domain.RunStats, error)
}

// ResultReader is the result/citation query surface.
type ResultReader interface {
	ListByRun(ctx context.Context, runID string, limit int) ([]domain.Result, error)
	ListBySource(ctx context.Context, runID, source string) ([]domain.Result, error)
	CitationsByRun(ctx context.Context, runID string) ([]domain.Citation, error)
	TopCitedDomains(ctx context.Context, runID string, limit int) ([]database.DomainCount, error)
	CitationCountsBySource(ctx context.Context, runID string) ([]database.SourceCount, error)
	ExportRows(ctx context.Context, runID string) ([]database.ExportRow, error)
}

// RunCreator queues runs and regenerates intents.
type RunCreator interface {
	CreateRun(ctx context.Context, req orchestrator.CreateRunRequest) (*orchestrator.CreateRunResponse, error)
	GenerateIntents(ctx context.Context, projectID string, normalized *domainutil.Normalized, description string, maxIntents int) ([]domain.Intent, error)
}

// Handlers holds the HTTP handler dependencies.
type Handlers struct {
	runs    RunReader
	results ResultReader
	service RunCreator
	log     logger.Logger
}

// NewHandlers creates the handler set.
func NewHandlers(runs RunReader, results ResultReader, service RunCreator, log logger.Logger) *Handlers {
	return &Handlers{runs: runs, results: results, service: service, log: log}
}

// --- POST /runs ---

type createRunRequest struct {
	AuditID           string   `json:"audit_id" binding:"required"`
	ProjectID         string   `json:"project_id" binding:"required"`
	Domain            string   `json:"domain" binding:"required"`
	Description       string   `json:"description"`
	Sources           []string `json:"sources"`
	MaxIntents        int      `json:"max_intents"`
	RegenerateIntents bool     `json:"regenerate_intents"`
}

// CreateRun queues a visibility run, reusing a recent completed one for the
// same project+domain when possible. It always answers with a run id; any
// execution failure surfaces later through the run status.
func (h *Handlers) CreateRun(c *gin.Context) {
	var req createRunRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondError(c, http.StatusBadRequest, "invalid request body", err.Error())
		return
	}

	resp, err := h.service.CreateRun(c.Request.Context(), orchestrator.CreateRunRequest{
		AuditID:           req.AuditID,
		ProjectID:         req.ProjectID,
		Domain:            req.Domain,
		Description:       req.Description,
		Sources:           req.Sources,
		MaxIntents:        req.MaxIntents,
		RegenerateIntents: req.RegenerateIntents,
	})
	if err != nil {
		respondDomainError(c, err)
		return
	}

	c.JSON(http.StatusAccepted, gin.H{
		"run_id":  resp.Run.ID,
		"status":  resp.Run.Status,
		"domain":  resp.Run.Hostname,
		"intents": resp.Intents,
		"reused":  resp.Reused,
	})
}

// --- GET /results ---

// GetResults returns a run with its results, citations, and a summary block.
// The run is addressed by run_id or, failing that, the newest run of an
// audit_id.
func (h *Handlers) GetResults(c *gin.Context) {
	run, ok := h.resolveRun(c)
	if !ok {
		return
	}

	limit := parseLimit(c.Query("limit"))
	results, err := h.results.ListByRun(c.Request.Context(), run.ID, limit)
	if err != nil {
		respondDomainError(c, err)
		return
	}
	citations, err := h.results.CitationsByRun(c.Request.Context(), run.ID)
	if err != nil {
		respondDomainError(c, err)
		return
	}

	summary, err := h.buildSummary(c.Request.Context(), run, results, citations)
	if err != nil {
		respondDomainError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"run":       runView(run),
		"summary":   summary,
		"results":   results2view(results),
		"citations": citations2view(citations),
	})
}

func (h *Handlers) buildSummary(ctx context.Context, run *domain.Run, results []domain.Result, citations []domain.Citation) (gin.H, error) {
	sourceCounts, err := h.results.CitationCountsBySource(ctx, run.ID)
	if err != nil {
		return nil, err
	}
	topDomains, err := h.results.TopCitedDomains(ctx, run.ID, topDomainsLimit)
	if err != nil {
		return nil, err
	}

	topIntents := make([]domain.Result, len(results))
	copy(topIntents, results)
	sort.SliceStable(topIntents, func(i, j int) bool {
		return topIntents[i].VisibilityScore > topIntents[j].VisibilityScore
	})
	if len(topIntents) > topIntentsLimit {
		topIntents = topIntents[:topIntentsLimit]
	}
	top := make([]gin.H, 0, len(topIntents))
	for _, r := range topIntents {
		top = append(top, gin.H{
			"query":  r.Query,
			"source": r.Source,
			"score":  r.VisibilityScore,
		})
	}

	audited := 0
	for _, cit := range citations {
		if cit.IsAuditedDomain {
			audited++
		}
	}

	return gin.H{
		"score":             run.Score,
		"coverage":          run.Coverage,
		"citations_total":   len(citations),
		"citations_audited": audited,
		"per_source":        sourceCounts,
		"top_intents":       top,
		"top_domains":       topDomains,
	}, nil
}

// --- GET /compare ---

// Compare reports the audited domain's score next to a competitor list.
// Competitor scores are not computed by this service; the response is
// explicitly marked non-authoritative.
func (h *Handlers) Compare(c *gin.Context) {
	run, ok := h.resolveRun(c)
	if !ok {
		return
	}

	competitors := splitCSVParam(c.Query("competitors"))
	entries := make([]gin.H, 0, len(competitors))
	for _, comp := range competitors {
		entries = append(entries, gin.H{
			"domain": domainutil.Hostname(comp),
			"score":  nil,
			"status": "not_computed",
		})
	}

	c.JSON(http.StatusOK, gin.H{
		"audit_id":      run.AuditID,
		"domain":        run.Hostname,
		"score":         run.Score,
		"competitors":   entries,
		"authoritative": false,
		"note":          "competitor scores are placeholders; run a dedicated audit per competitor for real numbers",
	})
}

// --- GET /export.csv ---

var exportHeader = []string{
	"source", "query", "ref_domain", "ref_url", "rank",
	"is_audited_domain", "title", "snippet", "visibility_score",
}

// ExportCSV streams every citation of a run as CSV.
func (h *Handlers) ExportCSV(c *gin.Context) {
	runID := c.Query("run_id")
	if runID == "" {
		respondError(c, http.StatusBadRequest, "run_id is required")
		return
	}
	if _, err := h.runs.GetByID(c.Request.Context(), runID); err != nil {
		respondDomainError(c, err)
		return
	}

	rows, err := h.results.ExportRows(c.Request.Context(), runID)
	if err != nil {
		respondDomainError(c, err)
		return
	}

	c.Header("Content-Type", "text/csv")
	c.Header("Content-Disposition", fmt.Sprintf("attachment; filename=%q", "visibility-"+runID+".csv"))

	w := csv.NewWriter(c.Writer)
	_ = w.Write(exportHeader)
	for _, row := range rows {
		_ = w.Write([]string{
			row.Source,
			row.Query,
			row.RefDomain,
			row.RefURL,
			strconv.Itoa(row.Rank),
			strconv.FormatBool(row.IsAuditedDomain),
			row.Title,
			row.Snippet.String,
			strconv.FormatFloat(row.VisibilityScore, 'f', 1, 64),
		})
	}
	w.Flush()
}

// --- POST /intents/generate ---

type generateIntentsRequest struct {
	ProjectID   string `json:"project_id" binding:"required"`
	Domain      string `json:"domain" binding:"required"`
	Description string `json:"description"`
	MaxIntents  int    `json:"max_intents"`
}

// GenerateIntents forces intent regeneration for a domain and returns a
// preview of the new set.
func (h *Handlers) GenerateIntents(c *gin.Context) {
	var req generateIntentsRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondError(c, http.StatusBadRequest, "invalid request body", err.Error())
		return
	}

	normalized, err := domainutil.Normalize(req.Domain)
	if err != nil {
		respondDomainError(c, err)
		return
	}

	intents, err := h.service.GenerateIntents(c.Request.Context(), req.ProjectID, normalized, req.Description, req.MaxIntents)
	if err != nil {
		respondDomainError(c, err)
		return
	}

	preview := make([]gin.H, 0, intentPreviewLimit)
	for i, it := range intents {
		if i >= intentPreviewLimit {
			break
		}
		preview = append(preview, gin.H{
			"query":       it.Query,
			"intent_type": it.IntentType,
			"weight":      it.Weight,
		})
	}

	c.JSON(http.StatusOK, gin.H{
		"domain":  normalized.Hostname,
		"count":   len(intents),
		"preview": preview,
	})
}

// --- GET /health ---

// Health reports run counts and the success rate over the trailing 24h.
func (h *Handlers) Health(c *gin.Context) {
	stats, err := h.runs.Stats(c.Request.Context(), statsWindow)
	if err != nil {
		respondDomainError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"status": "ok",
		"window": statsWindow.String(),
		"runs":   stats,
	})
}

// --- GET /results/grouped ---

// GroupedResults returns citations grouped by prompt for a single source.
// The resolved run must belong to the requested domain (or an alias):
// serving another tenant's data would be a leak, so a mismatch is fatal for
// the request.
func (h *Handlers) GroupedResults(c *gin.Context) {
	source := c.Query("source")
	if source == "" {
		respondError(c, http.StatusBadRequest, "source is required")
		return
	}

	run, ok := h.resolveRun(c)
	if !ok {
		return
	}
	if err := h.checkDomainIntegrity(c, run); err != nil {
		respondError(c, http.StatusBadRequest, "domain mismatch", err.Error())
		return
	}

	results, err := h.results.ListBySource(c.Request.Context(), run.ID, source)
	if err != nil {
		respondDomainError(c, err)
		return
	}
	citations, err := h.results.CitationsByRun(c.Request.Context(), run.ID)
	if err != nil {
		respondDomainError(c, err)
		return
	}

	byResult := map[string][]gin.H{}
	for _, cit := range citations {
		byResult[cit.ResultID] = append(byResult[cit.ResultID], citationView(cit))
	}

	groups := make([]gin.H, 0, len(results))
	for _, r := range results {
		cits := byResult[r.ID]
		if cits == nil {
			cits = []gin.H{}
		}
		groups = append(groups, gin.H{
			"query":     r.Query,
			"score":     r.VisibilityScore,
			"citations": cits,
		})
	}

	c.JSON(http.StatusOK, gin.H{
		"run_id": run.ID,
		"source": source,
		"domain": run.Hostname,
		"groups": groups,
	})
}

// --- GET /debug/provenance ---

// Provenance asserts the resolved run's domain matches the requested one
// (or a derived alias) and reports per-source citation counts and top cited
// domains. A mismatch returns 500 with an explanation: it means stored data
// violates the tenancy invariant.
func (h *Handlers) Provenance(c *gin.Context) {
	run, ok := h.resolveRun(c)
	if !ok {
		return
	}
	if err := h.checkDomainIntegrity(c, run); err != nil {
		respondError(c, http.StatusInternalServerError, "provenance check failed", err.Error())
		return
	}

	sourceCounts, err := h.results.CitationCountsBySource(c.Request.Context(), run.ID)
	if err != nil {
		respondDomainError(c, err)
		return
	}
	topDomains, err := h.results.TopCitedDomains(c.Request.Context(), run.ID, topDomainsLimit)
	if err != nil {
		respondDomainError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"run_id":      run.ID,
		"audit_id":    run.AuditID,
		"domain":      run.Hostname,
		"status":      run.Status,
		"per_source":  sourceCounts,
		"top_domains": topDomains,
	})
}

// --- helpers ---

// resolveRun loads the run addressed by run_id or audit_id. Writes the error
// response itself and returns ok=false on failure.
func (h *Handlers) resolveRun(c *gin.Context) (*domain.Run, bool) {
	ctx := c.Request.Context()

	if runID := c.Query("run_id"); runID != "" {
		run, err := h.runs.GetByID(ctx, runID)
		if err != nil {
			respondDomainError(c, err)
			return nil, false
		}
		return run, true
	}
	if auditID := c.Query("audit_id"); auditID != "" {
		run, err := h.runs.LatestByAudit(ctx, auditID)
		if err != nil {
			respondDomainError(c, err)
			return nil, false
		}
		return run, true
	}

	respondError(c, http.StatusBadRequest, "run_id or audit_id is required")
	return nil, false
}

// checkDomainIntegrity verifies the run's hostname belongs to the domain the
// caller claims to be asking about.
func (h *Handlers) checkDomainIntegrity(c *gin.Context, run *domain.Run) error {
	requested := c.Query("domain")
	if requested == "" {
		// Caller did not assert a domain, nothing to verify against.
		return nil
	}

	normalized, err := domainutil.Normalize(requested)
	if err != nil {
		return err
	}
	aliases := domainutil.DeriveAliases(normalized.Hostname, "")
	if !domainutil.IsAuditedURL("https://"+run.Hostname, normalized.Hostname, aliases) {
		return fmt.Errorf("%w: run %s belongs to %s, request asserts %s",
			domain.ErrDomainMismatch, run.ID, run.Hostname, normalized.Hostname)
	}
	return nil
}

func parseLimit(raw string) int {
	if raw == "" {
		return defaultResultLimit
	}
	n, err := strconv.Atoi(raw)
	if err != nil || n <= 0 {
		return defaultResultLimit
	}
	if n > maxResultLimit {
		return maxResultLimit
	}
	return n
}

func splitCSVParam(raw string) []string {
	var out []string
	for _, part := range strings.Split(raw, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}

func runView(run *domain.Run) gin.H {
	return gin.H{
		"id":           run.ID,
		"project_id":   run.ProjectID,
		"audit_id":     run.AuditID,
		"domain":       run.Hostname,
		"etld1":        run.ETLD1,
		"sources":      []string(run.Sources),
		"status":       run.Status,
		"intent_count": run.IntentCount,
		"score":        run.Score,
		"coverage":     run.Coverage,
		"error":        run.ErrorMessage,
		"created_at":   run.CreatedAt,
		"started_at":   run.StartedAt,
		"finished_at":  run.FinishedAt,
	}
}

func results2view(results []domain.Result) []gin.H {
	out := make([]gin.H, 0, len(results))
	for _, r := range results {
		out = append(out, gin.H{
			"id":     r.ID,
			"source": r.Source,
			"query":  r.Query,
			"answer": r.Answer,
			"score":  r.VisibilityScore,
			"cached": r.Cached,
		})
	}
	return out
}

func citations2view(citations []domain.Citation) []gin.H {
	out := make([]gin.H, 0, len(citations))
	for _, cit := range citations {
		out = append(out, citationView(cit))
	}
	return out
}

func citationView(cit domain.Citation) gin.H {
	return gin.H{
		"result_id":         cit.ResultID,
		"rank":              cit.Rank,
		"ref_url":           cit.RefURL,
		"ref_domain":        cit.RefDomain,
		"title":             cit.Title,
		"snippet":           cit.Snippet,
		"is_audited_domain": cit.IsAuditedDomain,
	}
}

package web

import (
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"plant-config/internal/apperr"
	"plant-config/internal/catalog"
	"plant-config/internal/configio"
	"plant-config/internal/document"
	"plant-config/internal/metrics"
	"plant-config/internal/model"
	"plant-config/internal/store"
	"plant-config/internal/trace"
)

// DefaultMaxUploadBytes 上传与请求体的默认大小上限
const DefaultMaxUploadBytes = 10 << 20

// API 汇总 HTTP 层依赖，使用 NewAPI 构造
type API struct {
	Service        *configio.Service
	Catalog        *catalog.Catalog
	Store          *store.Store
	Hub            *Hub
	Tracker        *LineTracker
	MaxUploadBytes int64
	StaticDir      string // 为空时不提供静态文件
	Logger         *slog.Logger
}

// taxonomyPaths URL 片段到类型表的映射
var taxonomyPaths = map[string]model.TaxonomyKind{
	"operation-types":   model.TaxonomyOperation,
	"workstation-types": model.TaxonomyWorkstation,
	"material-types":    model.TaxonomyMaterial,
}

// NewAPI 补齐默认值，日志在这里带上 component 字段
func NewAPI(deps API) *API {
	a := deps
	if a.MaxUploadBytes <= 0 {
		a.MaxUploadBytes = DefaultMaxUploadBytes
	}
	if a.Logger == nil {
		a.Logger = slog.Default()
	}
	a.Logger = a.Logger.With("component", "api")
	return &a
}

// Router 构建全部路由，不修改 API 本身，可以多次调用
func (a *API) Router() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.Recoverer)
	r.Use(trace.Middleware)
	r.Use(a.observe)

	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})
	r.Handle("/metrics", promhttp.Handler())
	r.Get("/api/state", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, a.Tracker.Snapshot())
	})
	if a.Hub != nil {
		r.Get("/ws", a.Hub.ServeWs(func() any { return a.Tracker.Snapshot() }))
	}

	r.Route("/api/config", func(r chi.Router) {
		r.Post("/validate", a.validateJSON)
		r.Post("/validate-file", a.validateFile)
		r.Post("/import", a.importFile)
		r.Post("/import-json", a.importJSON)
		r.Get("/export/{lineID}", a.export)
		r.Get("/validate-production-line/{lineID}", a.validateExisting)
		for segment, kind := range taxonomyPaths {
			r.Route("/"+segment, a.taxonomyRoutes(kind))
		}
	})

	r.Route("/api/production-lines", func(r chi.Router) {
		r.Get("/", a.listLines)
		r.Get("/{lineID}", a.getLine)
		r.Delete("/{lineID}", a.deleteLine)
	})

	r.Put("/api/buffers/{bufferID}/level", a.setBufferLevel)
	r.Put("/api/workstations/{workstationID}/status", a.setWorkstationStatus)

	r.Route("/api/routines/{routineID}", func(r chi.Router) {
		r.Delete("/steps/{stepID}", a.deleteStep)
		r.Post("/links", a.createLink)
		r.Delete("/links/{linkID}", a.deleteLink)
	})

	if a.StaticDir != "" {
		r.Handle("/*", http.FileServer(http.Dir(a.StaticDir)))
	}
	return r
}

// observe 记录请求耗时与访问日志
func (a *API) observe(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		next.ServeHTTP(ww, r)

		route := chi.RouteContext(r.Context()).RoutePattern()
		if route == "" {
			route = "unmatched"
		}
		status := ww.Status()
		if status == 0 {
			status = http.StatusOK
		}
		metrics.RequestDuration.WithLabelValues(route, strconv.Itoa(status)).Observe(time.Since(start).Seconds())
		a.Logger.Debug("请求完成", "method", r.Method, "route", route, "status", status,
			"duration", time.Since(start), "trace_id", trace.ID(r.Context()))
	})
}

// --- 配置导入导出 ---

func (a *API) validateJSON(w http.ResponseWriter, r *http.Request) {
	tree, err := a.readBody(w, r)
	if err != nil {
		a.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, a.Service.Validate(r.Context(), tree))
}

func (a *API) validateFile(w http.ResponseWriter, r *http.Request) {
	tree, err := a.readUpload(w, r)
	if err != nil {
		a.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, a.Service.Validate(r.Context(), tree))
}

func (a *API) importFile(w http.ResponseWriter, r *http.Request) {
	tree, err := a.readUpload(w, r)
	if err != nil {
		a.fail(w, r, err)
		return
	}
	a.runImport(w, r, tree)
}

func (a *API) importJSON(w http.ResponseWriter, r *http.Request) {
	tree, err := a.readBody(w, r)
	if err != nil {
		a.fail(w, r, err)
		return
	}
	a.runImport(w, r, tree)
}

func (a *API) runImport(w http.ResponseWriter, r *http.Request, tree document.Tree) {
	report, err := a.Service.Import(r.Context(), tree)
	if err != nil {
		writeJSON(w, statusOf(err), report)
		return
	}
	writeJSON(w, http.StatusOK, report)
}

func (a *API) export(w http.ResponseWriter, r *http.Request) {
	lineID := chi.URLParam(r, "lineID")
	format, err := document.ParseFormat(r.URL.Query().Get("format"))
	if err != nil {
		a.fail(w, r, err)
		return
	}
	data, err := a.Service.Export(r.Context(), lineID, format)
	if err != nil {
		a.fail(w, r, err)
		return
	}
	w.Header().Set("Content-Type", format.ContentType())
	w.Header().Set("Content-Disposition", `attachment; filename="`+document.ExportFilename(lineID, format)+`"`)
	w.WriteHeader(http.StatusOK)
	w.Write(data)
}

func (a *API) validateExisting(w http.ResponseWriter, r *http.Request) {
	v, err := a.Service.ValidateExisting(r.Context(), chi.URLParam(r, "lineID"))
	if err != nil {
		a.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, v)
}

// readBody 读取 JSON 请求体
func (a *API) readBody(w http.ResponseWriter, r *http.Request) (document.Tree, error) {
	data, err := io.ReadAll(http.MaxBytesReader(w, r.Body, a.MaxUploadBytes))
	if err != nil {
		return nil, apperr.Wrap(apperr.CodeParse, err, "读取请求体失败")
	}
	return document.Parse(data, document.FormatJSON)
}

// readUpload 读取 multipart 表单中的 file 字段，按扩展名解析
func (a *API) readUpload(w http.ResponseWriter, r *http.Request) (document.Tree, error) {
	r.Body = http.MaxBytesReader(w, r.Body, a.MaxUploadBytes)
	file, header, err := r.FormFile("file")
	if err != nil {
		return nil, apperr.Wrap(apperr.CodeParse, err, "缺少上传文件 file")
	}
	defer file.Close()

	data, err := io.ReadAll(file)
	if err != nil {
		return nil, apperr.Wrap(apperr.CodeParse, err, "读取文件 %s 失败", header.Filename)
	}
	return document.ParseFile(header.Filename, data)
}

// --- 类型表 ---

type taxonomyRequest struct {
	Name        string `json:"name"`
	Description string `json:"description"`
}

func (a *API) taxonomyRoutes(kind model.TaxonomyKind) func(chi.Router) {
	return func(r chi.Router) {
		r.Get("/", func(w http.ResponseWriter, r *http.Request) {
			entries, err := a.Catalog.List(r.Context(), kind)
			if err != nil {
				a.fail(w, r, err)
				return
			}
			writeJSON(w, http.StatusOK, nonNil(entries))
		})
		r.Post("/", func(w http.ResponseWriter, r *http.Request) {
			var req taxonomyRequest
			if err := decodeJSON(r, &req); err != nil {
				a.fail(w, r, err)
				return
			}
			e, err := a.Catalog.Create(r.Context(), kind, model.TaxonomyEntry{Name: req.Name, Description: req.Description})
			if err != nil {
				a.fail(w, r, err)
				return
			}
			writeJSON(w, http.StatusCreated, e)
		})
		r.Get("/{id}", func(w http.ResponseWriter, r *http.Request) {
			e, err := a.Catalog.Get(r.Context(), kind, chi.URLParam(r, "id"))
			if err != nil {
				a.fail(w, r, err)
				return
			}
			writeJSON(w, http.StatusOK, e)
		})
		r.Put("/{id}", func(w http.ResponseWriter, r *http.Request) {
			var req taxonomyRequest
			if err := decodeJSON(r, &req); err != nil {
				a.fail(w, r, err)
				return
			}
			e, err := a.Catalog.Update(r.Context(), kind, model.TaxonomyEntry{
				ID: chi.URLParam(r, "id"), Name: req.Name, Description: req.Description,
			})
			if err != nil {
				a.fail(w, r, err)
				return
			}
			writeJSON(w, http.StatusOK, e)
		})
		r.Delete("/{id}", func(w http.ResponseWriter, r *http.Request) {
			if err := a.Catalog.Delete(r.Context(), kind, chi.URLParam(r, "id")); err != nil {
				a.fail(w, r, err)
				return
			}
			w.WriteHeader(http.StatusNoContent)
		})
	}
}

// --- 产线与工艺路线 ---

type lineDetail struct {
	model.ProductionLine
	Statistics model.Statistics `json:"statistics"`
}

func (a *API) listLines(w http.ResponseWriter, r *http.Request) {
	lines, err := a.Store.ListLines(r.Context())
	if err != nil {
		a.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, nonNil(lines))
}

func (a *API) getLine(w http.ResponseWriter, r *http.Request) {
	snap, err := a.Store.LoadLine(r.Context(), chi.URLParam(r, "lineID"))
	if err != nil {
		a.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, lineDetail{ProductionLine: snap.Line, Statistics: snap.Statistics()})
}

func (a *API) deleteLine(w http.ResponseWriter, r *http.Request) {
	if err := a.Service.DeleteLine(r.Context(), chi.URLParam(r, "lineID")); err != nil {
		a.fail(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

type bufferLevelRequest struct {
	CurrentLevel *int `json:"current_level"`
}

func (a *API) setBufferLevel(w http.ResponseWriter, r *http.Request) {
	var req bufferLevelRequest
	if err := decodeJSON(r, &req); err != nil {
		a.fail(w, r, err)
		return
	}
	if req.CurrentLevel == nil {
		a.fail(w, r, apperr.New(apperr.CodeField, "缺少 current_level 字段"))
		return
	}
	if err := a.Store.SetBufferLevel(r.Context(), chi.URLParam(r, "bufferID"), *req.CurrentLevel); err != nil {
		a.fail(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

type workstationStatusRequest struct {
	Status model.WorkstationStatus `json:"status"`
}

func (a *API) setWorkstationStatus(w http.ResponseWriter, r *http.Request) {
	var req workstationStatusRequest
	if err := decodeJSON(r, &req); err != nil {
		a.fail(w, r, err)
		return
	}
	if err := a.Store.UpdateWorkstationStatus(r.Context(), chi.URLParam(r, "workstationID"), req.Status); err != nil {
		a.fail(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (a *API) deleteStep(w http.ResponseWriter, r *http.Request) {
	err := a.Store.DeleteStep(r.Context(), chi.URLParam(r, "routineID"), chi.URLParam(r, "stepID"))
	if err != nil {
		a.fail(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

type linkRequest struct {
	FromStepID string `json:"from_step_id"`
	ToStepID   string `json:"to_step_id"`
}

func (a *API) createLink(w http.ResponseWriter, r *http.Request) {
	routineID := chi.URLParam(r, "routineID")
	var req linkRequest
	if err := decodeJSON(r, &req); err != nil {
		a.fail(w, r, err)
		return
	}
	if _, err := a.Store.GetRoutine(r.Context(), routineID); err != nil {
		a.fail(w, r, err)
		return
	}
	link := model.RoutineStepLink{
		ID:         model.NewID(model.PrefixLink),
		RoutineID:  routineID,
		FromStepID: req.FromStepID,
		ToStepID:   req.ToStepID,
	}
	if err := a.Store.CreateLink(r.Context(), link); err != nil {
		a.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, link)
}

func (a *API) deleteLink(w http.ResponseWriter, r *http.Request) {
	err := a.Store.DeleteLink(r.Context(), chi.URLParam(r, "routineID"), chi.URLParam(r, "linkID"))
	if err != nil {
		a.fail(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// --- 响应辅助 ---

type errorBody struct {
	Code   apperr.Code `json:"code,omitempty"`
	Detail string      `json:"detail"`
}

func (a *API) fail(w http.ResponseWriter, r *http.Request, err error) {
	status := statusOf(err)
	if status >= http.StatusInternalServerError {
		a.Logger.Error("请求处理失败", "path", r.URL.Path, "error", err, "trace_id", trace.ID(r.Context()))
	}
	writeJSON(w, status, errorBody{Code: apperr.CodeOf(err), Detail: apperr.UserMessage(err)})
}

// statusOf 错误码到 HTTP 状态码的映射
func statusOf(err error) int {
	var tooLarge *http.MaxBytesError
	if errors.As(err, &tooLarge) {
		return http.StatusRequestEntityTooLarge
	}
	switch apperr.CodeOf(err) {
	case apperr.CodeInvalid, apperr.CodeParse, apperr.CodeField, apperr.CodeShape,
		apperr.CodeUniqueness, apperr.CodeReference:
		return http.StatusBadRequest
	case apperr.CodeNotFound:
		return http.StatusNotFound
	case apperr.CodeConflict:
		return http.StatusConflict
	default:
		return http.StatusInternalServerError
	}
}

func decodeJSON(r *http.Request, dst any) error {
	if err := json.NewDecoder(r.Body).Decode(dst); err != nil {
		return apperr.Wrap(apperr.CodeParse, err, "请求体不是有效的 JSON")
	}
	return nil
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

func nonNil[T any](s []T) []T {
	if s == nil {
		return []T{}
	}
	return s
}

package files

import (
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strings"

	"github.com/cespare/xxhash/v2"
	"github.com/chromy/assetcache/internal/core"
	"github.com/chromy/assetcache/internal/processor"
	"github.com/chromy/assetcache/internal/routes"
	"github.com/chromy/assetcache/internal/schemas"
	"github.com/gabriel-vasile/mimetype"
	"github.com/getsentry/sentry-go"
	"github.com/julienschmidt/httprouter"
)

// OwnerHeader carries the user name set by the authenticating proxy in front
// of the server.
const OwnerHeader = "X-Authenticated-User"

// maxRequestSize bounds the multipart body: the file plus form overhead.
const maxRequestSize = processor.MaxFileSize + 1<<20

var contentTypes = map[string]string{
	"css": "text/css; charset=utf-8",
	"js":  "text/javascript; charset=utf-8",
}

func owner(w http.ResponseWriter, r *http.Request) (string, bool) {
	name := strings.TrimSpace(r.Header.Get(OwnerHeader))
	if name == "" {
		http.Error(w, "authentication required", http.StatusUnauthorized)
		return "", false
	}
	return name, true
}

func facade(w http.ResponseWriter) (*core.Facade, bool) {
	f := core.GetFacade()
	if f == nil {
		http.Error(w, "file cache not initialized", http.StatusServiceUnavailable)
		return nil, false
	}
	return f, true
}

func UploadHandler(w http.ResponseWriter, r *http.Request, ps httprouter.Params) {
	user, ok := owner(w, r)
	if !ok {
		return
	}
	f, ok := facade(w)
	if !ok {
		return
	}

	r.Body = http.MaxBytesReader(w, r.Body, maxRequestSize)
	if err := r.ParseMultipartForm(maxRequestSize); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			writeJSON(w, http.StatusBadRequest, core.StoreResponse{
				Errors: []string{fmt.Sprintf("Uploaded file's size should be less than %s.", processor.MaxFileSizeStr)},
			})
			return
		}
		http.Error(w, "could not parse multipart form", http.StatusBadRequest)
		return
	}
	defer r.MultipartForm.RemoveAll()

	file, header, err := r.FormFile("file")
	if err != nil {
		http.Error(w, "file must be set", http.StatusBadRequest)
		return
	}
	defer file.Close()

	upload := processor.Upload{Filename: header.Filename, Size: header.Size, Body: file}
	minify := r.FormValue("minify") == "true"
	convert := r.FormValue("convert") == "true"

	resp, err := f.StoreFile(r.Context(), upload, user, minify, convert)
	if err != nil {
		captureError(r, err)
		slog.Error("failed to store file", "owner", user, "filename", header.Filename, "err", err)
		http.Error(w, "failed to store file", http.StatusInternalServerError)
		return
	}
	if !resp.Success {
		writeJSON(w, http.StatusBadRequest, resp)
		return
	}

	status := http.StatusCreated
	if resp.Overwritten {
		status = http.StatusOK
	}
	writeJSON(w, status, resp)
}

func ListHandler(w http.ResponseWriter, r *http.Request, ps httprouter.Params) {
	user, ok := owner(w, r)
	if !ok {
		return
	}
	f, ok := facade(w)
	if !ok {
		return
	}

	list, err := f.ListFiles(r.Context(), user)
	if err != nil {
		captureError(r, err)
		http.Error(w, "failed to list files", http.StatusInternalServerError)
		return
	}
	writeJSON(w, http.StatusOK, list)
}

func RetrieveHandler(w http.ResponseWriter, r *http.Request, ps httprouter.Params) {
	user, ok := owner(w, r)
	if !ok {
		return
	}
	f, ok := facade(w)
	if !ok {
		return
	}

	filename := ps.ByName("filename")
	if filename == "" {
		http.Error(w, "filename must be set", http.StatusBadRequest)
		return
	}

	content, found, err := f.RetrieveFile(r.Context(), filename, user)
	if err != nil {
		captureError(r, err)
		http.Error(w, "failed to retrieve file", http.StatusInternalServerError)
		return
	}
	if !found {
		http.Error(w, fmt.Sprintf("file '%s' not found", filename), http.StatusNotFound)
		return
	}

	etag := fmt.Sprintf(`"%016x"`, xxhash.Sum64(content))
	w.Header().Set("ETag", etag)
	w.Header().Set("Cache-Control", "private, no-cache")
	if r.Header.Get("If-None-Match") == etag {
		w.WriteHeader(http.StatusNotModified)
		return
	}

	contentType, found := contentTypes[processor.Extension(filename)]
	if !found {
		contentType = mimetype.Detect(content).String()
	}
	w.Header().Set("Content-Type", contentType)
	w.Write(content)
}

func captureError(r *http.Request, err error) {
	if hub := sentry.GetHubFromContext(r.Context()); hub != nil {
		hub.CaptureException(err)
		return
	}
	sentry.CaptureException(err)
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		slog.Error("failed to encode response", "err", err)
	}
}

func init() {
	routes.Register(routes.Route{
		Id:      "files.upload",
		Method:  http.MethodPost,
		Path:    "/api/files",
		Handler: UploadHandler,
	})

	routes.Register(routes.Route{
		Id:      "files.list",
		Method:  http.MethodGet,
		Path:    "/api/files",
		Handler: ListHandler,
	})

	routes.Register(routes.Route{
		Id:      "files.retrieve",
		Method:  http.MethodGet,
		Path:    "/api/files/:filename",
		Handler: RetrieveHandler,
	})

	schemas.Register("files.FileInfo", core.FileInfo{})
	schemas.Register("files.StoreResponse", core.StoreResponse{})
	schemas.Register("files.FileList", core.FileList{})

	schemas.RegisterConstant("MAX_FILE_SIZE", processor.MaxFileSize)
	for _, category := range []processor.Category{processor.CategoryText, processor.CategoryImage} {
		name := "ALLOWED_" + strings.ToUpper(string(category)) + "_TYPES"
		schemas.RegisterConstant(name, processor.AllowedTypes[category])
	}
}

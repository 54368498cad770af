package httpapi

import (
	"encoding/json"
	"io"
	"mime/multipart"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"time"
)

// sanitizeFilename translates every byte that isn't alphanumeric,
// '_', '-', '+', '.', ',' (or above ASCII) into '_', matching
// original_source/src/marlinfeed.cpp's upload()'s finished_fname
// construction exactly.
func sanitizeFilename(name string) string {
	b := []byte(name)
	for i, c := range b {
		if c > 127 {
			continue
		}
		alnum := (c >= '0' && c <= '9') || (c >= 'a' && c <= 'z') || (c >= 'A' && c <= 'Z')
		if alnum || c == '_' || c == '-' || c == '+' || c == '.' || c == ',' {
			continue
		}
		b[i] = '_'
	}
	return string(b)
}

// handleUpload implements POST /api/files/local: stream the uploaded
// file's multipart body part into a temp file under the upload
// directory, then atomically rename it into place on completion,
// grounded on the teacher's pkg/moonraker/files.go's UploadFile (the
// path-traversal check, os.Create + io.Copy, cleanup on error) and
// original_source's upload() (write-to-temp-then-move, filename
// sanitization). Reading parts one at a time with mime/multipart.Reader
// rather than http.Request.ParseMultipartForm mirrors the original's
// streaming-as-it-arrives style instead of buffering the whole body.
func (s *Server) handleUpload(w http.ResponseWriter, r *http.Request) {
	mr, err := r.MultipartReader()
	if err != nil {
		s.badRequest(w, "expected multipart/form-data body")
		return
	}

	var savedName string
	for {
		part, err := mr.NextPart()
		if err == io.EOF {
			break
		}
		if err != nil {
			s.badRequest(w, "malformed multipart body")
			return
		}

		if part.FormName() != "file" || part.FileName() == "" {
			part.Close()
			continue
		}

		name, err := s.saveUploadPart(part)
		part.Close()
		if err != nil {
			s.badRequest(w, "storing upload: "+err.Error())
			return
		}
		savedName = name
		break
	}

	if savedName == "" {
		s.badRequest(w, "no file part found in upload")
		return
	}

	s.writeJSON(w, http.StatusCreated, map[string]any{
		"files": map[string]any{
			"local": map[string]any{"name": savedName},
		},
		"done": true,
	})
}

func (s *Server) saveUploadPart(part *multipart.Part) (string, error) {
	finalName := sanitizeFilename(part.FileName())
	finalPath := filepath.Join(s.cfg.UploadDir, finalName)

	absFinal, err := filepath.Abs(finalPath)
	if err != nil {
		return "", err
	}
	absRoot, err := filepath.Abs(s.cfg.UploadDir)
	if err != nil {
		return "", err
	}
	if !strings.HasPrefix(absFinal, absRoot) {
		return "", os.ErrPermission
	}

	tmp, err := os.CreateTemp(s.cfg.UploadDir, "upload-*")
	if err != nil {
		return "", err
	}
	tmpPath := tmp.Name()

	if _, err := io.Copy(tmp, part); err != nil {
		tmp.Close()
		os.Remove(tmpPath)
		return "", err
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpPath)
		return "", err
	}

	if err := os.Rename(tmpPath, finalPath); err != nil {
		os.Remove(tmpPath)
		return "", err
	}
	return finalName, nil
}

type printTriggerRequest struct {
	Print bool `json:"print"`
}

// handlePrintTrigger implements POST /api/files/local/<name>: a
// print:true body refreshes the file's mtime so the directory watcher's
// debounce naturally schedules it, matching original_source's
// touch_file().
func (s *Server) handlePrintTrigger(w http.ResponseWriter, r *http.Request) {
	name := strings.TrimPrefix(r.URL.Path, "/api/files/local/")
	if name == "" || strings.Contains(name, "/") {
		s.badRequest(w, "invalid file name")
		return
	}

	var req printTriggerRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.badRequest(w, "malformed print-trigger body")
		return
	}

	path := filepath.Join(s.cfg.UploadDir, name)
	if req.Print {
		now := time.Now()
		if err := os.Chtimes(path, now, now); err != nil {
			s.badRequest(w, "refreshing file mtime: "+err.Error())
			return
		}
		s.cfg.Queue.Touch(path)
	}

	w.WriteHeader(http.StatusNoContent)
}

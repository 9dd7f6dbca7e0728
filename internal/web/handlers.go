package web

import (
	"fmt"
	"mime"
	"net/http"
	"path"
	"strconv"

	"github.com/go-chi/chi/v5"

	"vault-backup/internal/vb"
)

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	if s.opts.Health == nil {
		writeError(w, http.StatusInternalServerError, fmt.Errorf("health state not initialized"))
		return
	}
	report, err := s.opts.Health.Report(r.Context())
	if err != nil {
		s.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, report)
}

func (s *Server) handleReady(w http.ResponseWriter, _ *http.Request) {
	if s.opts.Health == nil {
		writeJSON(w, http.StatusServiceUnavailable, map[string]bool{"ready": false})
		return
	}
	writeJSON(w, http.StatusOK, map[string]bool{"ready": true})
}

func (s *Server) handleLog(w http.ResponseWriter, r *http.Request) {
	limit := queryInt(r, "limit", defaultLogLimit, maxLogLimit)
	var commits []vb.Commit
	if file := r.URL.Query().Get("file"); file != "" {
		commits = s.opts.Git.FileHistory(r.Context(), s.opts.Root, file, limit)
	} else {
		commits = s.opts.Git.Log(r.Context(), s.opts.Root, limit)
	}
	if commits == nil {
		commits = []vb.Commit{}
	}
	writeJSON(w, http.StatusOK, commits)
}

func (s *Server) handleCommit(w http.ResponseWriter, r *http.Request) {
	ref := chi.URLParam(r, "ref")
	commit, ok := s.opts.Git.LogOne(r.Context(), s.opts.Root, ref)
	if !ok {
		writeError(w, http.StatusNotFound, fmt.Errorf("commit %s: %w", ref, vb.ErrNotFound))
		return
	}
	writeJSON(w, http.StatusOK, commit)
}

func (s *Server) handleCommitFiles(w http.ResponseWriter, r *http.Request) {
	changes := s.opts.Git.ChangedFiles(r.Context(), s.opts.Root, chi.URLParam(r, "ref"))
	if changes == nil {
		changes = []vb.FileChange{}
	}
	writeJSON(w, http.StatusOK, changes)
}

func (s *Server) handleCommitDiff(w http.ResponseWriter, r *http.Request) {
	p := r.URL.Query().Get("path")
	if p == "" {
		writeError(w, http.StatusBadRequest, fmt.Errorf("missing path parameter"))
		return
	}
	diff := s.opts.Git.FileDiff(r.Context(), s.opts.Root, chi.URLParam(r, "ref"), p)
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	w.Write([]byte(diff))
}

func (s *Server) handleSnapshots(w http.ResponseWriter, r *http.Request) {
	tag := r.URL.Query().Get("tag")
	if tag == "" {
		tag = s.opts.DefaultTag
	}
	snaps := s.opts.Snapshots.Snapshots(r.Context(), tag)
	if snaps == nil {
		snaps = []vb.Snapshot{}
	}
	writeJSON(w, http.StatusOK, snaps)
}

func (s *Server) handleFiles(w http.ResponseWriter, r *http.Request) {
	id := r.URL.Query().Get("snapshot")
	if id == "" {
		writeError(w, http.StatusBadRequest, fmt.Errorf("missing snapshot parameter"))
		return
	}
	prefix := r.URL.Query().Get("path")
	if prefix == "" {
		prefix = s.opts.Root
	}

	entries, ok := s.listings.get(id)
	if !ok {
		var err error
		entries, err = s.opts.Snapshots.ListFiles(r.Context(), id)
		if err != nil {
			s.fail(w, r, err)
			return
		}
		s.listings.add(id, entries)
	}
	writeJSON(w, http.StatusOK, vb.ProjectDirectory(entries, prefix))
}

func (s *Server) content(w http.ResponseWriter, r *http.Request) (*vb.Content, string, bool) {
	source := r.URL.Query().Get("source")
	p := r.URL.Query().Get("path")
	if source == "" || p == "" {
		writeError(w, http.StatusBadRequest, fmt.Errorf("missing source or path parameter"))
		return nil, "", false
	}
	c, err := s.opts.Resolver.Content(r.Context(), source, p)
	if err != nil {
		s.fail(w, r, err)
		return nil, "", false
	}
	return c, p, true
}

func (s *Server) handlePreview(w http.ResponseWriter, r *http.Request) {
	c, p, ok := s.content(w, r)
	if !ok {
		return
	}
	ctype := mime.TypeByExtension(path.Ext(p))
	if ctype == "" {
		ctype = http.DetectContentType(c.Data)
	}
	if path.Ext(p) == ".md" {
		ctype = "text/markdown; charset=utf-8"
	}
	w.Header().Set("Content-Type", ctype)
	w.Header().Set("X-Source-Kind", c.Source.String())
	w.Header().Set("X-Content-Type-Options", "nosniff")
	w.Write(c.Data)
}

func (s *Server) handleDownload(w http.ResponseWriter, r *http.Request) {
	c, p, ok := s.content(w, r)
	if !ok {
		return
	}
	w.Header().Set("Content-Type", "application/octet-stream")
	w.Header().Set("Content-Disposition", mime.FormatMediaType("attachment", map[string]string{"filename": path.Base(p)}))
	w.Header().Set("Content-Length", strconv.Itoa(len(c.Data)))
	w.Header().Set("X-Source-Kind", c.Source.String())
	w.Write(c.Data)
}

func (s *Server) handleRestore(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseForm(); err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	source := r.PostForm.Get("source")
	p := r.PostForm.Get("path")
	if source == "" || p == "" {
		writeError(w, http.StatusBadRequest, fmt.Errorf("missing source or path parameter"))
		return
	}

	res, err := s.opts.Restorer.Restore(r.Context(), source, p, r.PostForm.Get("target"))
	if err != nil {
		s.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{
		"target": res.Target,
		"source": res.Source.String(),
	})
}

func (s *Server) handleRuns(w http.ResponseWriter, r *http.Request) {
	runs := []*vb.RunRecord{}
	if s.opts.Runs != nil {
		recent, err := s.opts.Runs.RecentRuns(queryInt(r, "limit", defaultRunLimit, maxLogLimit))
		if err != nil {
			s.fail(w, r, err)
			return
		}
		if recent != nil {
			runs = recent
		}
	}
	writeJSON(w, http.StatusOK, runs)
}

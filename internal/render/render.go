// Package render materializes a derived plan into the configuration files the
// Hadoop and HBase daemons read. Output is written atomically and files whose
// content would not change are left alone.
package render

import (
	"bytes"
	"context"
	"embed"
	"encoding/xml"
	"fmt"
	"os"
	"path/filepath"
	"text/template"

	"clustercfg/internal/domain"

	"github.com/rs/zerolog/log"
)

//go:embed templates/*.tmpl
var templateFS embed.FS

// Status reports what Materialize did with one artifact
type Status string

const (
	StatusWritten   Status = "written"
	StatusUnchanged Status = "unchanged"
)

// Artifacts is everything a materializer needs for one node
type Artifacts struct {
	Snapshot *domain.MembershipSnapshot
	Plan     *domain.PlanResult
	LocalID  string
}

// Rendered describes one output file
type Rendered struct {
	Name   string `json:"name"`
	Path   string `json:"path"`
	Status Status `json:"status"`
	Bytes  int    `json:"bytes"`
}

// Materializer turns a plan into configuration artifacts
type Materializer interface {
	Materialize(ctx context.Context, a Artifacts) ([]Rendered, error)
}

// HadoopSettings are the values not derived from membership
type HadoopSettings struct {
	NamenodeDir  string
	DatanodeDir  string
	ZookeeperDir string
	NamenodePort int
}

type artifact struct {
	name     string
	template string
	subdir   string
}

var hadoopArtifacts = []artifact{
	{name: "slaves", template: "slaves.tmpl", subdir: "hadoop"},
	{name: "hdfs-site.xml", template: "hdfs-site.xml.tmpl", subdir: "hadoop"},
	{name: "core-site.xml", template: "core-site.xml.tmpl", subdir: "hadoop"},
	{name: "regionservers", template: "regionservers.tmpl", subdir: "hbase"},
	{name: "hbase-site.xml", template: "hbase-site.xml.tmpl", subdir: "hbase"},
}

// HadoopRenderer writes slaves, regionservers and the site XML files under
// outputDir/hadoop and outputDir/hbase
type HadoopRenderer struct {
	outputDir string
	settings  HadoopSettings
	templates *template.Template
}

// NewHadoopRenderer parses the embedded templates
func NewHadoopRenderer(outputDir string, settings HadoopSettings) (*HadoopRenderer, error) {
	if outputDir == "" {
		return nil, fmt.Errorf("render output dir is empty")
	}
	if settings.NamenodePort == 0 {
		settings.NamenodePort = 9000
	}

	tmpl, err := template.New("hadoop").
		Funcs(template.FuncMap{"xml": xmlEscape}).
		ParseFS(templateFS, "templates/*.tmpl")
	if err != nil {
		return nil, fmt.Errorf("parse templates: %w", err)
	}

	return &HadoopRenderer{
		outputDir: outputDir,
		settings:  settings,
		templates: tmpl,
	}, nil
}

type templateData struct {
	Members       []string
	Replication   int
	IsCoordinator bool
	Coordinator   string
	Quorum        string
	Hadoop        HadoopSettings
}

// Materialize renders every artifact for a.LocalID. The hdfs-site.xml variant
// depends on whether the local node is the coordinator.
func (r *HadoopRenderer) Materialize(ctx context.Context, a Artifacts) ([]Rendered, error) {
	if a.Snapshot == nil || a.Plan == nil {
		return nil, fmt.Errorf("render: snapshot and plan are required")
	}

	if _, ok := a.Snapshot.Lookup(a.LocalID); !ok {
		log.Warn().Str("local_id", a.LocalID).Msg("Local node is not in the inventory, rendering worker variant")
	}

	coordinator := a.Snapshot.Coordinator()
	members := []string{coordinator.ID}
	members = append(members, a.Snapshot.WorkerIDs()...)

	data := templateData{
		Members:       members,
		Replication:   int(a.Plan.Replication),
		IsCoordinator: a.Snapshot.IsCoordinator(a.LocalID),
		Coordinator:   coordinator.ID,
		Quorum:        a.Plan.Quorum.String(),
		Hadoop:        r.settings,
	}

	results := make([]Rendered, 0, len(hadoopArtifacts))
	for _, art := range hadoopArtifacts {
		if err := ctx.Err(); err != nil {
			return results, err
		}

		var buf bytes.Buffer
		if err := r.templates.ExecuteTemplate(&buf, art.template, data); err != nil {
			return results, fmt.Errorf("render %s: %w", art.name, err)
		}

		path := filepath.Join(r.outputDir, art.subdir, art.name)
		status, err := writeIfChanged(path, buf.Bytes())
		if err != nil {
			return results, err
		}

		log.Debug().Str("file", path).Str("status", string(status)).Msg("Artifact rendered")
		results = append(results, Rendered{
			Name:   art.name,
			Path:   path,
			Status: status,
			Bytes:  buf.Len(),
		})
	}

	return results, nil
}

// writeIfChanged replaces path with content via a temp file and rename,
// skipping the write when the file already holds content
func writeIfChanged(path string, content []byte) (Status, error) {
	existing, err := os.ReadFile(path)
	if err == nil && bytes.Equal(existing, content) {
		return StatusUnchanged, nil
	}

	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return "", fmt.Errorf("create %s: %w", dir, err)
	}

	tmp, err := os.CreateTemp(dir, "."+filepath.Base(path)+".*")
	if err != nil {
		return "", fmt.Errorf("create temp file: %w", err)
	}
	tmpName := tmp.Name()
	defer os.Remove(tmpName) // no-op after a successful rename

	if _, err := tmp.Write(content); err != nil {
		tmp.Close()
		return "", fmt.Errorf("write %s: %w", tmpName, err)
	}
	if err := tmp.Chmod(0644); err != nil {
		tmp.Close()
		return "", fmt.Errorf("chmod %s: %w", tmpName, err)
	}
	if err := tmp.Close(); err != nil {
		return "", fmt.Errorf("close %s: %w", tmpName, err)
	}

	if err := os.Rename(tmpName, path); err != nil {
		return "", fmt.Errorf("rename %s: %w", path, err)
	}
	return StatusWritten, nil
}

func xmlEscape(s string) (string, error) {
	var buf bytes.Buffer
	if err := xml.EscapeText(&buf, []byte(s)); err != nil {
		return "", err
	}
	return buf.String(), nil
}

package codedom

import (
	"context"
	"strings"
	"time"

	"golang.org/x/sync/errgroup"

	"codeassist/internal/logging"
	"codeassist/internal/tools"
	"codeassist/internal/tools/core"
)

// Analysis types accepted by analyze_code.
const (
	AnalysisBasic     = "basic"
	AnalysisStructure = "structure"
	AnalysisLint      = "pylint"
	AnalysisFull      = "full"
)

// FullReport combines the structure outline and the lint report.
type FullReport struct {
	Structure *Structure  `json:"structure"`
	Lint      *LintReport `json:"lint"`
}

// AnalyzeCodeTool returns the static analysis tool.
func AnalyzeCodeTool(ws *core.Workspace) *tools.Tool {
	et := &editTools{ws: ws}
	return &tools.Tool{
		Name:        tools.ToolAnalyzeCode,
		Description: "Analyze a code file and provide structure information",
		Category:    tools.CategoryCode,
		Execute:     et.analyzeCode,
		Schema: tools.ToolSchema{
			Required: []string{"filepath"},
			Properties: map[string]tools.Property{
				"filepath": {Type: "string", Description: "Path to the file to analyze"},
				"analysis_type": {
					Type:        "string",
					Description: "Type of analysis to perform",
					Enum:        []any{AnalysisBasic, AnalysisStructure, AnalysisLint, AnalysisFull},
					Default:     AnalysisBasic,
				},
			},
		},
	}
}

func (et *editTools) analyzeCode(ctx context.Context, args map[string]any) (tools.Result, error) {
	filepath, err := tools.RequireString(args, "filepath")
	if err != nil {
		return nil, err
	}
	analysisType := tools.StringArg(args, "analysis_type", AnalysisBasic)

	if !et.ws.IsFile(filepath) {
		return tools.ErrorResult("File not found: %s", filepath), nil
	}
	_, content, _, err := et.ws.ReadFile(filepath)
	if err != nil {
		return tools.ErrorResult("Error analyzing code: %v", err), nil
	}

	lang, supported := DetectLanguage(filepath)
	res := tools.Result{
		"filepath":   filepath,
		"size_bytes": len(content),
		"line_count": strings.Count(content, "\n") + 1,
		"language":   lang,
	}
	if analysisType == AnalysisBasic {
		return res, nil
	}
	if !supported {
		res["note"] = "Detailed analysis is not available for " + lang + " files"
		return res, nil
	}

	start := time.Now()
	src := []byte(content)
	switch analysisType {
	case AnalysisStructure:
		s, err := Outline(ctx, lang, src)
		if err != nil {
			return tools.ErrorResult("Error analyzing code: %v", err), nil
		}
		res["structure"] = s
	case AnalysisLint:
		r, err := Lint(ctx, lang, src)
		if err != nil {
			return tools.ErrorResult("Error analyzing code: %v", err), nil
		}
		res["pylint_report"] = r
	case AnalysisFull:
		full, err := fullAnalysis(ctx, lang, src)
		if err != nil {
			return tools.ErrorResult("Error analyzing code: %v", err), nil
		}
		res["full_report"] = full
	default:
		return tools.ErrorResult("Unknown analysis type: %s", analysisType), nil
	}

	logging.Analysis("analyze_code: %s %s (%s) in %v", analysisType, filepath, lang, time.Since(start))
	return res, nil
}

// fullAnalysis runs the outline and lint passes concurrently.
func fullAnalysis(ctx context.Context, lang string, src []byte) (*FullReport, error) {
	var report FullReport
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		s, err := Outline(gctx, lang, src)
		report.Structure = s
		return err
	})
	g.Go(func() error {
		r, err := Lint(gctx, lang, src)
		report.Lint = r
		return err
	})
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return &report, nil
}

package main

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"ai-recruit-go/internal/extract"
	"ai-recruit-go/internal/types"
)

var parseCmd = &cobra.Command{
	Use:   "parse <file>",
	Short: "解析一份简历文档并输出候选人记录",
	Args:  cobra.ExactArgs(1),
	RunE:  runParse,
}

var (
	parseFormat string
	parseStore  bool
)

func init() {
	parseCmd.Flags().StringVarP(&parseFormat, "format", "f", "", "文档格式 (txt|json|docx|pdf)，默认按扩展名推断")
	parseCmd.Flags().BoolVar(&parseStore, "store", false, "解析后保存为候选人")
	rootCmd.AddCommand(parseCmd)
}

func runParse(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	file := args[0]

	f, err := os.Open(file)
	if err != nil {
		return fmt.Errorf("打开文件失败: %w", err)
	}
	defer f.Close()

	format := extract.ParseFormat(file)
	if parseFormat != "" {
		format = extract.ParseFormat(parseFormat)
	}
	doc, err := extract.NewDocument(filepath.Base(file), format, f)
	if err != nil {
		return err
	}

	s, err := setup(ctx)
	if err != nil {
		return err
	}
	defer s.cleanup()

	var (
		result types.MultiResumeDetectionResult
		ids    []uint
	)
	if parseStore {
		result, ids, err = s.app.Processor.ProcessAndStore(ctx, doc, file)
	} else {
		result, err = s.app.Processor.DetectAndParse(ctx, doc)
	}
	if err != nil {
		return err
	}

	out := map[string]any{
		"isMultiple": result.IsMultiple,
		"count":      result.Count,
		"resumes":    result.Resumes,
	}
	if parseStore {
		out["candidateIds"] = ids
	}
	return printJSON(cmd, out)
}

func printJSON(cmd *cobra.Command, v any) error {
	enc := json.NewEncoder(cmd.OutOrStdout())
	enc.SetIndent("", "  ")
	enc.SetEscapeHTML(false)
	return enc.Encode(v)
}

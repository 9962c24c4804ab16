package main

import (
	"fmt"
	"strconv"

	"github.com/spf13/cobra"
)

var matchCmd = &cobra.Command{
	Use:   "match <candidateId> <jobId>",
	Short: "计算一个候选人与一个岗位的匹配结果",
	Args:  cobra.ExactArgs(2),
	RunE:  runMatch,
}

var batchCmd = &cobra.Command{
	Use:   "batch",
	Short: "批量计算候选人与开放岗位的匹配结果",
	RunE:  runBatch,
}

var (
	batchCandidateIDs []uint
	batchJobIDs       []uint
)

func init() {
	batchCmd.Flags().UintSliceVar(&batchCandidateIDs, "candidates", nil, "候选人ID列表，默认全部")
	batchCmd.Flags().UintSliceVar(&batchJobIDs, "jobs", nil, "岗位ID列表，默认全部开放岗位")
	rootCmd.AddCommand(matchCmd, batchCmd)
}

func parseID(s, name string) (uint, error) {
	v, err := strconv.ParseUint(s, 10, 64)
	if err != nil || v == 0 {
		return 0, fmt.Errorf("无效的%s: %q", name, s)
	}
	return uint(v), nil
}

func runMatch(cmd *cobra.Command, args []string) error {
	cid, err := parseID(args[0], "候选人ID")
	if err != nil {
		return err
	}
	jid, err := parseID(args[1], "岗位ID")
	if err != nil {
		return err
	}

	ctx := cmd.Context()
	s, err := setup(ctx)
	if err != nil {
		return err
	}
	defer s.cleanup()

	r, err := s.app.Matcher.ComputeMatch(ctx, cid, jid)
	if err != nil {
		return err
	}
	return printJSON(cmd, map[string]any{
		"candidateId":     r.CandidateID,
		"jobId":           r.JobID,
		"score":           r.Score,
		"matchedKeywords": r.MatchedKeywords(),
		"missingKeywords": r.MissingKeywords(),
		"details":         r.Details,
	})
}

func runBatch(cmd *cobra.Command, _ []string) error {
	ctx := cmd.Context()
	s, err := setup(ctx)
	if err != nil {
		return err
	}
	defer s.cleanup()

	summary, err := s.app.Batch.RunBatch(ctx, batchCandidateIDs, batchJobIDs)
	if err != nil {
		return err
	}
	return printJSON(cmd, summary)
}

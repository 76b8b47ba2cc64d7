package main

import (
	"fmt"

	"github.com/charmbracelet/lipgloss"
	"github.com/spf13/cobra"

	"github.com/vilaca/mr-conflict-detector/internal/domain"
	"github.com/vilaca/mr-conflict-detector/internal/service"
)

var (
	titleStyle = lipgloss.NewStyle().Bold(true)
	okStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("42"))
	warnStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("214")).Bold(true)
)

func newScanCmd(a *app) *cobra.Command {
	var (
		project string
		post    bool
	)

	cmd := &cobra.Command{
		Use:   "scan",
		Short: "Detect conflicts between all open merge requests of a project",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			projectID, err := a.projectID(project)
			if err != nil {
				return err
			}

			svc, formatter, err := a.buildService()
			if err != nil {
				return err
			}

			conflicts, err := svc.Scan(cmd.Context(), projectID)
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			fmt.Fprintln(out, titleStyle.Render(fmt.Sprintf("Open merge request conflicts in %s", projectID)))
			fmt.Fprintln(out, summary(conflicts))
			fmt.Fprintln(out)
			fmt.Fprintln(out, formatter.FormatConflicts(conflicts))

			if !post {
				return nil
			}
			for _, iid := range service.InvolvedIIDs(conflicts) {
				result, err := svc.Check(cmd.Context(), projectID, iid, false)
				if err != nil {
					return fmt.Errorf("failed to post report on !%d: %w", iid, err)
				}
				a.logger.Info("report posted", "mr", iid, "note", string(result.Action))
			}
			return nil
		},
	}

	cmd.Flags().StringVarP(&project, "project", "p", "", "project ID or path (default CI_PROJECT_ID)")
	cmd.Flags().BoolVar(&post, "post", false, "post a report on every merge request involved in a conflict")

	return cmd
}

func summary(conflicts []domain.MergeRequestConflict) string {
	if len(conflicts) == 0 {
		return okStyle.Render("no overlapping merge requests")
	}
	return warnStyle.Render(fmt.Sprintf("%d conflicting pairs, %d merge requests involved",
		len(conflicts), len(service.InvolvedIIDs(conflicts))))
}

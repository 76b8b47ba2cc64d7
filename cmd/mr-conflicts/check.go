package main

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"
)

func newCheckCmd(a *app) *cobra.Command {
	var (
		project        string
		iid            int
		dryRun         bool
		failOnConflict bool
	)

	cmd := &cobra.Command{
		Use:   "check",
		Short: "Check one merge request and post the conflict report as a note",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			projectID, err := a.projectID(project)
			if err != nil {
				return err
			}
			if iid == 0 {
				iid = a.cfg.GitLab.MergeRequestIID
			}
			if iid == 0 {
				return errors.New("no merge request given (use --mr or CI_MERGE_REQUEST_IID)")
			}

			svc, _, err := a.buildService()
			if err != nil {
				return err
			}

			result, err := svc.Check(cmd.Context(), projectID, iid, dryRun)
			if err != nil {
				return err
			}

			if dryRun {
				fmt.Fprint(cmd.OutOrStdout(), result.Note)
			}
			a.logger.Info("merge request checked",
				"project", projectID,
				"mr", iid,
				"conflicts", len(result.Conflicts),
				"resolved", len(result.Resolved),
				"note", string(result.Action))

			if failOnConflict && len(result.Conflicts) > 0 {
				return errConflictsFound
			}
			return nil
		},
	}

	cmd.Flags().StringVarP(&project, "project", "p", "", "project ID or path (default CI_PROJECT_ID)")
	cmd.Flags().IntVarP(&iid, "mr", "m", 0, "merge request IID (default CI_MERGE_REQUEST_IID)")
	cmd.Flags().BoolVar(&dryRun, "dry-run", false, "print the note instead of posting it")
	cmd.Flags().BoolVar(&failOnConflict, "fail-on-conflict", false, "exit with status 2 when conflicts remain")

	return cmd
}

package main

import (
	"encoding/base64"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"

	"github.com/joseph-ayodele/course-jobs/internal/entity"
)

var (
	submitType      string
	submitPrincipal string
	submitPayload   string
	submitFile      string
	submitCourseID  string
)

var submitCmd = &cobra.Command{
	Use:   "submit",
	Short: "Submit one job",
	Long: `Submit one job and print its id.

The payload is either given as JSON with --payload (prefix with @ to read
a file), or built from --file and --course-id.`,
	RunE: runSubmit,
}

func init() {
	submitCmd.Flags().StringVarP(&submitType, "type", "t", "", "job type (required)")
	submitCmd.Flags().StringVar(&submitPrincipal, "principal", "", "job owner (required)")
	submitCmd.Flags().StringVar(&submitPayload, "payload", "", "payload JSON, or @path")
	submitCmd.Flags().StringVarP(&submitFile, "file", "f", "", "document to attach")
	submitCmd.Flags().StringVar(&submitCourseID, "course-id", "", "course id for --file payloads")
	_ = submitCmd.MarkFlagRequired("type")
	_ = submitCmd.MarkFlagRequired("principal")
	submitCmd.MarkFlagsMutuallyExclusive("payload", "file")
	rootCmd.AddCommand(submitCmd)
}

func runSubmit(cmd *cobra.Command, args []string) error {
	payload, err := submitBody()
	if err != nil {
		return err
	}

	a, err := openApp(cmd.Context())
	if err != nil {
		return err
	}
	defer a.close()

	orch, err := a.submitter()
	if err != nil {
		return err
	}
	id, err := orch.Submit(cmd.Context(), submitType, payload, submitPrincipal)
	if err != nil {
		return err
	}
	fmt.Fprintln(cmd.OutOrStdout(), id)
	return nil
}

func submitBody() (json.RawMessage, error) {
	switch {
	case strings.HasPrefix(submitPayload, "@"):
		b, err := os.ReadFile(strings.TrimPrefix(submitPayload, "@"))
		if err != nil {
			return nil, fmt.Errorf("read payload: %w", err)
		}
		return b, nil
	case submitPayload != "":
		return json.RawMessage(submitPayload), nil
	case submitFile != "":
		b, err := os.ReadFile(submitFile)
		if err != nil {
			return nil, fmt.Errorf("read file: %w", err)
		}
		return json.Marshal(entity.Payload{
			CourseID: submitCourseID,
			Filename: filepath.Base(submitFile),
			Document: base64.StdEncoding.EncodeToString(b),
		})
	default:
		return json.RawMessage(`{}`), nil
	}
}

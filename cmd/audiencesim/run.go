package main

import (
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/tjfontaine/audiencesim/internal/core/domain"
	"github.com/tjfontaine/audiencesim/internal/runtime"
)

func newRunCmd() *cobra.Command {
	var (
		in        domain.PipelineInputs
		followers string
		offline   bool
		summary   bool
	)

	cmd := &cobra.Command{
		Use:   "run",
		Short: "Run one simulation and print the final state as JSON",
		Example: `  audiencesim run --platform tiktok --video videos/clip.mp4 --followers 850K
  audiencesim run --platform linkedin --text "We are hiring" --offline`,
		RunE: func(cmd *cobra.Command, args []string) error {
			logger := newLogger()

			if in.TextContent != "" {
				in.ContentType = domain.ContentText
			}
			if followers != "" {
				in.PlatformMetrics = map[string]any{"followers": followers}
			}

			opts := []runtime.Option{
				runtime.WithConfigFile(cfgFile),
				runtime.WithLogger(logger),
			}
			if offline {
				opts = append(opts, runtime.WithOffline())
			}

			svc, err := runtime.New(opts...)
			if err != nil {
				return fmt.Errorf("create service: %w", err)
			}
			defer svc.Shutdown(cmd.Context())

			state, err := svc.Run(cmd.Context(), in)
			if err != nil {
				return err
			}

			var out any = state
			if summary {
				out = map[string]any{
					"run_id":               state.RunID,
					"status":               state.Status,
					"errors":               state.Errors,
					"final_metrics":        state.FinalMetrics,
					"platform_predictions": state.PlatformPredictions,
				}
			}

			enc := json.NewEncoder(cmd.OutOrStdout())
			enc.SetIndent("", "  ")
			return enc.Encode(out)
		},
	}

	f := cmd.Flags()
	f.StringVar(&in.Platform, "platform", "", "target platform, e.g. tiktok")
	f.StringVar(&in.ContentID, "id", "", "content identifier")
	f.StringVar(&in.ContentURL, "video", "", "video path or URL")
	f.StringVar(&in.TextContent, "text", "", "text post body")
	f.StringVar(&followers, "followers", "", "creator follower count, e.g. 850K")
	f.BoolVar(&offline, "offline", false, "run without a model provider")
	f.BoolVar(&summary, "summary", false, "print metrics and predictions only")
	cmd.MarkFlagsMutuallyExclusive("video", "text")
	cmd.MarkFlagsOneRequired("video", "text")
	_ = cmd.MarkFlagRequired("platform")

	return cmd
}

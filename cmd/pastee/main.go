package main

import (
	"bufio"
	"context"
	"encoding/base64"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strconv"
	"strings"
	"syscall"
	"text/tabwriter"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"github.com/Hewenz/pastee/clipview"
)

var serviceURL string
var debug bool

const requestTimeout = 15 * time.Second

func main() {
	cmd := NewRootCmd()
	if err := cmd.Execute(); err != nil {
		log.Error().Err(err).Msg("command failed")
		os.Exit(1)
	}
}

// NewRootCmd constructs the root CLI command; exposed for unit testing.
func NewRootCmd() *cobra.Command {
	rootCmd := &cobra.Command{
		Use:           "pastee",
		Short:         "Browse and manage the clipboard history",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRun: func(cmd *cobra.Command, args []string) {
			zerolog.TimeFieldFormat = zerolog.TimeFormatUnix
			log.Logger = log.Output(zerolog.ConsoleWriter{
				Out:        os.Stderr,
				TimeFormat: "2006-01-02 15:04:05",
				NoColor:    true,
			})

			if debug {
				zerolog.SetGlobalLevel(zerolog.DebugLevel)
				_ = os.Setenv("PASTEE_DEBUG", "true")
				log.Debug().Msg("debug logging enabled")
			} else {
				zerolog.SetGlobalLevel(zerolog.InfoLevel)
			}
		},
	}

	defaultURL := getEnv("PASTEE_BASE_URL", clipview.DefaultConfig().BaseURL)
	rootCmd.PersistentFlags().StringVar(&serviceURL, "service-url", defaultURL, "Base URL of the clipboard backend")
	rootCmd.PersistentFlags().BoolVarP(&debug, "debug", "d", false, "Enable verbose debug output")

	rootCmd.AddCommand(newListCmd())
	rootCmd.AddCommand(newSearchCmd())
	rootCmd.AddCommand(newCountCmd())
	rootCmd.AddCommand(newDeleteCmd())
	rootCmd.AddCommand(newPinCmd())
	rootCmd.AddCommand(newClearCmd())
	rootCmd.AddCommand(newContentCmd())
	rootCmd.AddCommand(newThumbnailCmd())
	rootCmd.AddCommand(newWatchCmd())

	return rootCmd
}

// session closes the in-process source it was handed along with the
// clipview session, which never closes sources it did not create.
type session struct {
	*clipview.Session
	bus *clipview.Bus
}

func (s *session) Close() error {
	err := s.Session.Close()
	if s.bus != nil {
		if berr := s.bus.Close(); err == nil {
			err = berr
		}
	}
	return err
}

// newSession builds a session without contacting the backend. One-shot
// commands pass live=false and get an idle in-process source instead of a
// push connection.
func newSession(live bool, opts ...clipview.Option) (*session, error) {
	out := &session{}
	if !live {
		out.bus = clipview.NewBus(1)
		opts = append(opts, clipview.WithSource(out.bus))
	}
	s, err := clipview.New(serviceURL, opts...)
	if err != nil {
		if out.bus != nil {
			_ = out.bus.Close()
		}
		return nil, err
	}
	out.Session = s
	return out, nil
}

// openSession builds a session and loads the first page and the count.
func openSession(ctx context.Context, live bool, opts ...clipview.Option) (*session, error) {
	s, err := newSession(live, opts...)
	if err != nil {
		return nil, err
	}
	if err := s.Start(ctx); err != nil {
		_ = s.Close()
		return nil, err
	}
	return s, nil
}

func newListCmd() *cobra.Command {
	var offset, limit int
	var typ string

	cmd := &cobra.Command{
		Use:   "list",
		Short: "List one page of the history",
		RunE: func(cmd *cobra.Command, args []string) error {
			filter, err := clipview.ParseFilter(typ)
			if err != nil {
				return err
			}
			ctx, cancel := context.WithTimeout(cmd.Context(), requestTimeout)
			defer cancel()

			s, err := openSession(ctx, false, clipview.WithPageSize(limit), clipview.WithOffset(offset))
			if err != nil {
				return err
			}
			defer s.Close()

			if err := s.SetFilter(filter); err != nil {
				return err
			}
			snap := s.Snapshot()
			printEntries(cmd.OutOrStdout(), snap.DisplayList)
			fmt.Fprintf(cmd.OutOrStdout(), "Page %d/%d (%d clips)\n", snap.Page(), snap.PageCount(), snap.TotalCount)
			return nil
		},
	}

	cmd.Flags().IntVar(&offset, "offset", 0, "Number of entries to skip")
	cmd.Flags().IntVar(&limit, "limit", clipview.DefaultConfig().PageSize, "Entries per page")
	cmd.Flags().StringVar(&typ, "type", "", "Only show one content type (text, html, color, image, files)")
	return cmd
}

func newSearchCmd() *cobra.Command {
	var typ string

	cmd := &cobra.Command{
		Use:   "search <query>",
		Short: "Search the history",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			filter, err := clipview.ParseFilter(typ)
			if err != nil {
				return err
			}
			ctx, cancel := context.WithTimeout(cmd.Context(), requestTimeout)
			defer cancel()

			s, err := openSession(ctx, false)
			if err != nil {
				return err
			}
			defer s.Close()

			if err := s.SetQuery(ctx, strings.Join(args, " ")); err != nil {
				return err
			}
			if err := s.SetFilter(filter); err != nil {
				return err
			}
			list := s.DisplayList()
			printEntries(cmd.OutOrStdout(), list)
			fmt.Fprintf(cmd.OutOrStdout(), "%d results\n", len(list))
			return nil
		},
	}

	cmd.Flags().StringVar(&typ, "type", "", "Only show one content type")
	return cmd
}

func newCountCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "count",
		Short: "Print the number of stored clips",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, cancel := context.WithTimeout(cmd.Context(), requestTimeout)
			defer cancel()

			s, err := openSession(ctx, false)
			if err != nil {
				return err
			}
			defer s.Close()

			fmt.Fprintln(cmd.OutOrStdout(), s.Snapshot().TotalCount)
			return nil
		},
	}
}

func newDeleteCmd() *cobra.Command {
	var yes bool

	cmd := &cobra.Command{
		Use:   "delete <id>",
		Short: "Delete one clip",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseID(args[0])
			if err != nil {
				return err
			}
			ctx, cancel := context.WithTimeout(cmd.Context(), requestTimeout)
			defer cancel()

			s, err := openSession(ctx, false, clipview.WithConfirmer(promptConfirmer(cmd, yes)))
			if err != nil {
				return err
			}
			defer s.Close()

			start := time.Now()
			err = s.Delete(ctx, id)
			if errors.Is(err, clipview.ErrDeclined) {
				fmt.Fprintln(cmd.OutOrStdout(), "Aborted")
				return nil
			}
			if err != nil {
				log.Error().Err(err).Int64("id", id).Dur("elapsed", time.Since(start)).Msg("delete failed")
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Clip %d deleted\n", id)
			return nil
		},
	}

	cmd.Flags().BoolVarP(&yes, "yes", "y", false, "Do not ask for confirmation")
	return cmd
}

func newPinCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "pin <id>",
		Short: "Toggle the pinned flag of a clip",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseID(args[0])
			if err != nil {
				return err
			}
			ctx, cancel := context.WithTimeout(cmd.Context(), requestTimeout)
			defer cancel()

			s, err := openSession(ctx, false)
			if err != nil {
				return err
			}
			defer s.Close()

			pinned, err := s.TogglePin(ctx, id)
			if err != nil {
				return err
			}
			state := "unpinned"
			if pinned {
				state = "pinned"
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Clip %d %s\n", id, state)
			return nil
		},
	}
}

func newClearCmd() *cobra.Command {
	var yes bool

	cmd := &cobra.Command{
		Use:   "clear",
		Short: "Delete every unpinned clip",
		RunE: func(cmd *cobra.Command, args []string) error {
			if !promptConfirmer(cmd, yes).Confirm(cmd.Context(), "Delete all unpinned clips?") {
				fmt.Fprintln(cmd.OutOrStdout(), "Aborted")
				return nil
			}
			ctx, cancel := context.WithTimeout(cmd.Context(), requestTimeout)
			defer cancel()

			s, err := openSession(ctx, false)
			if err != nil {
				return err
			}
			defer s.Close()

			n, err := s.ClearUnpinned(ctx)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "%d clips deleted\n", n)
			return nil
		},
	}

	cmd.Flags().BoolVarP(&yes, "yes", "y", false, "Do not ask for confirmation")
	return cmd
}

func newContentCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "content <id>",
		Short: "Print the full content of a clip",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseID(args[0])
			if err != nil {
				return err
			}
			ctx, cancel := context.WithTimeout(cmd.Context(), requestTimeout)
			defer cancel()

			s, err := newSession(false)
			if err != nil {
				return err
			}
			defer s.Close()

			c, err := s.Content(ctx, id)
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			switch {
			case len(c.Files) > 0:
				for _, f := range c.Files {
					fmt.Fprintln(out, f)
				}
			case c.Text != "":
				fmt.Fprintln(out, c.Text)
			case c.HTML != "":
				fmt.Fprintln(out, c.HTML)
			default:
				fmt.Fprintln(out, c.Data)
			}
			return nil
		},
	}
}

func newThumbnailCmd() *cobra.Command {
	var outPath string

	cmd := &cobra.Command{
		Use:   "thumbnail <id>",
		Short: "Fetch the thumbnail of an image clip",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseID(args[0])
			if err != nil {
				return err
			}
			ctx, cancel := context.WithTimeout(cmd.Context(), requestTimeout)
			defer cancel()

			s, err := newSession(false)
			if err != nil {
				return err
			}
			defer s.Close()

			uri, err := s.Thumbnail(ctx, id)
			if err != nil {
				return err
			}
			if outPath == "" {
				fmt.Fprintln(cmd.OutOrStdout(), uri)
				return nil
			}
			data, err := decodeDataURI(uri)
			if err != nil {
				return err
			}
			if err := os.WriteFile(outPath, data, 0o644); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Wrote %d bytes to %s\n", len(data), outPath)
			return nil
		},
	}

	cmd.Flags().StringVarP(&outPath, "out", "o", "", "Write the decoded image to this file instead of printing the data URI")
	return cmd
}

func newWatchCmd() *cobra.Command {
	var query, typ string

	cmd := &cobra.Command{
		Use:   "watch",
		Short: "Print the live display list whenever it changes",
		RunE: func(cmd *cobra.Command, args []string) error {
			filter, err := clipview.ParseFilter(typ)
			if err != nil {
				return err
			}
			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			s, err := openSession(ctx, true, clipview.WithNotifier(clipview.NotifyFunc(func(n clipview.Notice) {
				log.Warn().Err(n.Err).Str("op", n.Op).Msg(n.Message)
			})))
			if err != nil {
				return err
			}
			defer s.Close()

			if err := s.SetFilter(filter); err != nil {
				return err
			}
			if query != "" {
				if err := s.SetQuery(ctx, query); err != nil {
					return err
				}
			}
			return watch(ctx, cmd.OutOrStdout(), s.Session)
		},
	}

	cmd.Flags().StringVar(&query, "query", "", "Only show entries matching this search")
	cmd.Flags().StringVar(&typ, "type", "", "Only show one content type")
	return cmd
}

func watch(ctx context.Context, out io.Writer, s *clipview.Session) error {
	render := func() {
		snap := s.Snapshot()
		fmt.Fprintf(out, "--- %s (%d clips)\n", time.Now().Format("15:04:05"), snap.TotalCount)
		printEntries(out, snap.DisplayList)
	}
	render()
	changes := s.Changes()
	for {
		select {
		case <-ctx.Done():
			return nil
		case _, ok := <-changes:
			if !ok {
				return nil
			}
			render()
		}
	}
}

// ------------------------- helpers -------------------------

func printEntries(out io.Writer, entries []clipview.Entry) {
	tw := tabwriter.NewWriter(out, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "ID\tTYPE\tPIN\tCREATED\tPREVIEW")
	for _, e := range entries {
		id := strconv.FormatInt(e.ID, 10)
		if e.IsProcessing {
			id = "…"
		}
		pin := ""
		if e.IsPinned {
			pin = "*"
		}
		created := time.UnixMicro(e.CreatedAt).Format("2006-01-02 15:04")
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%s\n", id, e.ContentType, pin, created, oneLine(e.Preview, 60))
	}
	_ = tw.Flush()
}

func oneLine(s string, width int) string {
	s = strings.Join(strings.Fields(s), " ")
	r := []rune(s)
	if len(r) > width {
		return string(r[:width-1]) + "…"
	}
	return s
}

func parseID(s string) (int64, error) {
	id, err := strconv.ParseInt(s, 10, 64)
	if err != nil || id <= 0 {
		return 0, fmt.Errorf("invalid clip id %q", s)
	}
	return id, nil
}

// promptConfirmer asks on the command's stdin unless yes is set.
func promptConfirmer(cmd *cobra.Command, yes bool) clipview.Confirmer {
	return clipview.ConfirmFunc(func(_ context.Context, prompt string) bool {
		if yes {
			return true
		}
		fmt.Fprintf(cmd.ErrOrStderr(), "%s [y/N] ", prompt)
		line, _ := bufio.NewReader(cmd.InOrStdin()).ReadString('\n')
		switch strings.ToLower(strings.TrimSpace(line)) {
		case "y", "yes":
			return true
		}
		return false
	})
}

func decodeDataURI(uri string) ([]byte, error) {
	i := strings.Index(uri, ";base64,")
	if !strings.HasPrefix(uri, "data:") || i < 0 {
		return nil, fmt.Errorf("not a base64 data URI")
	}
	return base64.StdEncoding.DecodeString(uri[i+len(";base64,"):])
}

func getEnv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

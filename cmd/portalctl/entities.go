package main

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/spec-kit/service-portal/internal/client"
	"github.com/spec-kit/service-portal/internal/domain"
	"github.com/spec-kit/service-portal/internal/feed"
	"github.com/spec-kit/service-portal/internal/lifecycle"
	"github.com/spec-kit/service-portal/internal/schedule"
	"github.com/spec-kit/service-portal/internal/stats"
	apperrors "github.com/spec-kit/service-portal/pkg/errorutil"
)

func newListCmd(a *app) *cobra.Command {
	var pages int
	cmd := &cobra.Command{
		Use:   "list",
		Short: "List tickets or service requests with status totals",
		RunE: func(cmd *cobra.Command, args []string) error {
			f, _, err := a.session(false)
			if err != nil {
				return err
			}
			defer f.Close()
			if err := loadPages(cmd.Context(), f, pages); err != nil {
				return err
			}
			items := f.Items()
			out := cmd.OutOrStdout()
			writeEntities(out, items, a.location)
			fmt.Fprintln(out)
			writeStats(out, f.Kind(), stats.Aggregate(items))
			if f.Snapshot().HasMore {
				fmt.Fprintln(out, mutedStyle.Render("more available, use --pages"))
			}
			return nil
		},
	}
	cmd.Flags().IntVar(&pages, "pages", 1, "number of pages to fetch (0 for all)")
	return cmd
}

// loadPages loads page 1 and then keeps following the sentinel until pages
// pages are loaded or the server reports no more. pages <= 0 loads everything.
func loadPages(ctx context.Context, f *feed.Feed, pages int) error {
	if err := f.Load(ctx, true); err != nil {
		return err
	}
	for loaded := 1; pages <= 0 || loaded < pages; loaded++ {
		started, err := f.SentinelReached(ctx)
		if err != nil {
			return err
		}
		if !started {
			return nil
		}
	}
	return nil
}

func newShowCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "show <id>",
		Short: "Show one entity with its timeline",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			kind, err := a.kind()
			if err != nil {
				return err
			}
			entity, err := a.api.Get(cmd.Context(), kind, args[0])
			if err != nil {
				return err
			}
			writeDetail(cmd.OutOrStdout(), entity, a.location, a.api.AttachmentURL)
			return nil
		},
	}
}

func newCreateCmd(a *app) *cobra.Command {
	var (
		input  client.CreateInput
		images []string
	)
	cmd := &cobra.Command{
		Use:   "create",
		Short: "File a new ticket or service request",
		RunE: func(cmd *cobra.Command, args []string) error {
			kind, err := a.kind()
			if err != nil {
				return err
			}
			if len(images) > domain.MaxCreateImages {
				return fmt.Errorf("at most %d images", domain.MaxCreateImages)
			}
			if input.Images, err = readUploads(images); err != nil {
				return err
			}
			entity, err := a.api.Create(cmd.Context(), kind, input)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "created %s (%s)\n", entity.DisplayID, entity.ID)
			return nil
		},
	}
	flags := cmd.Flags()
	flags.Var((*categoryValue)(&input.Category), "category", "equipment category")
	flags.StringVar(&input.Title, "title", "", "short title")
	flags.StringVar(&input.Description, "description", "", "problem description")
	flags.StringVar(&input.OutletID, "outlet", "", "outlet ID")
	flags.StringArrayVar(&images, "image", nil, "image file to attach (repeatable)")
	for _, name := range []string{"category", "title", "description", "outlet"} {
		_ = cmd.MarkFlagRequired(name)
	}
	return cmd
}

func newStatusCmd(a *app) *cobra.Command {
	var date, slot string
	cmd := &cobra.Command{
		Use:   "status <id> <status>",
		Short: "Set the status of an entity (admin)",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			_, ctrl, err := a.session(false)
			if err != nil {
				return err
			}
			var visitAt *time.Time
			if date != "" || slot != "" {
				parsed, err := schedule.ParseSlot(slot)
				if err != nil {
					return err
				}
				at, err := schedule.Resolve(date, parsed, time.Now(), a.location)
				if err != nil {
					return err
				}
				visitAt = &at
			}
			entity, err := a.api.Get(cmd.Context(), mustKind(a), args[0])
			if err != nil {
				return err
			}
			updated, err := ctrl.UpdateStatus(cmd.Context(), entity, domain.Status(args[1]), visitAt)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "%s is now %s\n", updated.DisplayID, statusBadge(updated.Status))
			return nil
		},
	}
	cmd.Flags().StringVar(&date, "date", "", "visit date, YYYY-MM-DD")
	cmd.Flags().StringVar(&slot, "slot", "", "visit slot: 09:00, 12:00 or 15:00")
	return cmd
}

func newReplyCmd(a *app) *cobra.Command {
	var (
		draft  lifecycle.ReplyDraft
		slot   string
		target string
		images []string
		prices []string
		total  float64
	)
	cmd := &cobra.Command{
		Use:   "reply <id>",
		Short: "Post a reply and schedule the visit",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			_, ctrl, err := a.session(false)
			if err != nil {
				return err
			}
			if draft.VisitSlot, err = schedule.ParseSlot(slot); err != nil {
				return err
			}
			draft.Status = domain.Status(target)
			if draft.Images, err = readUploads(images); err != nil {
				return err
			}
			if draft.PriceList, err = parsePriceItems(prices); err != nil {
				return err
			}
			if cmd.Flags().Changed("total") {
				draft.TotalPrice = &total
			}

			entity, err := a.api.Get(cmd.Context(), mustKind(a), args[0])
			if err != nil {
				return err
			}
			updated, err := ctrl.SubmitReply(cmd.Context(), entity, draft)
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "replied to %s, now %s\n", updated.DisplayID, statusBadge(updated.Status))
			if updated.AssignedVisitAt != nil {
				fmt.Fprintf(out, "visit scheduled %s (%s)\n",
					updated.AssignedVisitAt.In(a.location).Format(timeLayout), draft.VisitSlot.Label())
			}
			return nil
		},
	}
	flags := cmd.Flags()
	flags.StringVar(&draft.Note, "note", "", "reply text")
	flags.StringVar(&draft.VisitDate, "date", "", "visit date, YYYY-MM-DD")
	flags.StringVar(&slot, "slot", "", "visit slot: 09:00, 12:00 or 15:00")
	flags.StringVar(&target, "status", "", "new status (admin)")
	flags.StringArrayVar(&images, "image", nil, "image file to attach (repeatable)")
	flags.StringArrayVar(&prices, "price", nil, "quotation line description=amount (repeatable)")
	flags.Float64Var(&total, "total", 0, "quotation total")
	for _, name := range []string{"note", "date", "slot"} {
		_ = cmd.MarkFlagRequired(name)
	}
	return cmd
}

func newDeleteCmd(a *app) *cobra.Command {
	var yes bool
	cmd := &cobra.Command{
		Use:   "delete <id>",
		Short: "Delete an entity after confirmation",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			_, ctrl, err := a.session(false)
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			entity, err := a.api.Get(cmd.Context(), mustKind(a), args[0])
			if apperrors.IsNotFound(err) {
				fmt.Fprintln(out, "already deleted")
				return nil
			}
			if err != nil {
				return err
			}

			intent := ctrl.RequestDelete(entity)
			if !yes && !confirm(cmd, fmt.Sprintf("Delete %s %q? [y/N] ", entity.DisplayID, entity.Title)) {
				ctrl.CancelDelete(intent)
				fmt.Fprintln(out, "cancelled")
				return nil
			}
			err = ctrl.ConfirmDelete(cmd.Context(), intent)
			switch {
			case err == nil:
				fmt.Fprintf(out, "deleted %s\n", entity.DisplayID)
				return nil
			case apperrors.IsNotFound(err):
				fmt.Fprintln(out, "already deleted")
				return nil
			default:
				return err
			}
		},
	}
	cmd.Flags().BoolVarP(&yes, "yes", "y", false, "skip the confirmation prompt")
	return cmd
}

func newWatchCmd(a *app) *cobra.Command {
	var interval time.Duration
	cmd := &cobra.Command{
		Use:   "watch",
		Short: "Keep the first page on screen, refreshing periodically",
		RunE: func(cmd *cobra.Command, args []string) error {
			f, ctrl, err := a.session(false)
			if err != nil {
				return err
			}
			defer f.Close()
			if interval <= 0 {
				interval = a.cfg.Client.RefreshInterval()
			}

			out := cmd.OutOrStdout()
			render := func() {
				items := f.Items()
				fmt.Fprintf(out, "\n%s\n", mutedStyle.Render(time.Now().In(a.location).Format(timeLayout)))
				writeEntities(out, items, a.location)
				writeStats(out, f.Kind(), stats.Aggregate(items))
			}

			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()
			if err := f.Load(ctx, true); err != nil {
				return err
			}
			render()

			refresher := feed.NewRefresher(renderingReloader{target: f, after: render}, interval, a.logger, ctrl)
			if err := refresher.Start(); err != nil {
				return err
			}
			defer refresher.Stop()
			<-ctx.Done()
			return nil
		},
	}
	cmd.Flags().DurationVar(&interval, "interval", 0, "refresh period (default $PORTAL_REFRESH_SECONDS)")
	return cmd
}

// renderingReloader redraws after every successful reload.
type renderingReloader struct {
	target feed.Reloader
	after  func()
}

func (r renderingReloader) Load(ctx context.Context, reset bool) error {
	if err := r.target.Load(ctx, reset); err != nil {
		return err
	}
	r.after()
	return nil
}

func confirm(cmd *cobra.Command, prompt string) bool {
	fmt.Fprint(cmd.OutOrStdout(), prompt)
	answer, err := bufio.NewReader(cmd.InOrStdin()).ReadString('\n')
	if err != nil && !errors.Is(err, io.EOF) {
		return false
	}
	answer = strings.ToLower(strings.TrimSpace(answer))
	return answer == "y" || answer == "yes"
}

func mustKind(a *app) domain.Kind {
	kind, _ := a.kind()
	return kind
}

// categoryValue validates --category against the fixed category list.
type categoryValue domain.Category

func (c *categoryValue) String() string { return string(*c) }

func (c *categoryValue) Set(raw string) error {
	for _, known := range domain.Categories() {
		if strings.EqualFold(string(known), strings.TrimSpace(raw)) {
			*c = categoryValue(known)
			return nil
		}
	}
	return fmt.Errorf("unknown category %q", raw)
}

func (c *categoryValue) Type() string { return "category" }

package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"sync"
	"text/tabwriter"
	"time"

	"github.com/puntazo/puntazo/internal/catalog"
	"github.com/puntazo/puntazo/internal/database"
	"github.com/puntazo/puntazo/internal/gallery"
	"github.com/puntazo/puntazo/internal/gate"
	"github.com/puntazo/puntazo/internal/playback"
	"github.com/puntazo/puntazo/internal/session"
	"github.com/puntazo/puntazo/internal/transfer"
	"github.com/puntazo/puntazo/internal/validate"
	"github.com/puntazo/puntazo/internal/webhook"
)

func newFlagSet(name string) *flag.FlagSet {
	fs := flag.NewFlagSet(name, flag.ContinueOnError)
	fs.SetOutput(io.Discard)
	return fs
}

func runHash(args []string, out io.Writer) error {
	fs := newFlagSet("hash")
	useBcrypt := fs.Bool("bcrypt", false, "bcrypt digest instead of SHA-256")
	if err := fs.Parse(args); err != nil || fs.NArg() != 1 {
		return usageError("usage: clipget hash [-bcrypt] <passphrase>")
	}
	pass := fs.Arg(0)
	if msg := validate.Passphrase(pass); msg != "" {
		return usageError(msg)
	}
	digest := gate.Digest(pass)
	if *useBcrypt {
		var err error
		if digest, err = gate.BcryptDigest(pass); err != nil {
			return err
		}
	}
	fmt.Fprintln(out, digest)
	return nil
}

func (a *app) runList(ctx context.Context, args []string) error {
	tw := tabwriter.NewWriter(a.out, 0, 4, 2, ' ', 0)
	defer tw.Flush()

	switch len(args) {
	case 0:
		locs, err := a.controller.Locations(ctx)
		if err != nil {
			return err
		}
		for _, l := range locs {
			fmt.Fprintf(tw, "%s\t%s\t%d courts\n", l.ID, l.Name, len(l.Courts))
		}
	case 1:
		loc, err := a.controller.Courts(ctx, args[0])
		if err != nil {
			return err
		}
		for _, c := range loc.Courts {
			fmt.Fprintf(tw, "%s\t%s\t%d sides\n", c.ID, c.Name, len(c.Sides))
		}
	case 2:
		court, err := a.controller.Sides(ctx, args[0], args[1])
		if err != nil {
			return err
		}
		for _, s := range court.Sides {
			fmt.Fprintf(tw, "%s\t%s\n", s.ID, s.Name)
		}
	default:
		return usageError("usage: clipget list [loc [can]]")
	}
	return nil
}

func sideNav(args []string) (gallery.Nav, error) {
	nav := gallery.Nav{Location: args[0], Court: args[1], Side: args[2]}
	for field, v := range map[string]string{"location": nav.Location, "court": nav.Court, "side": nav.Side} {
		if msg := validate.Identifier(v, field); msg != "" {
			return nav, usageError(msg)
		}
	}
	return nav, nil
}

func (a *app) runView(ctx context.Context, args []string) error {
	fs := newFlagSet("view")
	filtro := fs.String("filtro", "", "only clips recorded in this hour (0-23)")
	page := fs.Int("page", 0, "zero-based page")
	video := fs.String("video", "", "open the page holding this clip")
	probe := fs.Bool("probe", false, "fetch clip sizes one at a time")
	if err := fs.Parse(args); err != nil || fs.NArg() != 3 {
		return usageError("usage: clipget view [-filtro h] [-page n] [-video name] [-probe] <loc> <can> <lado>")
	}
	nav, err := sideNav(fs.Args())
	if err != nil {
		return err
	}
	hour, msg := validate.Hour(*filtro)
	if msg != "" {
		return usageError(msg)
	}
	nav.Hour, nav.Page, nav.Video = hour, *page, *video

	view, err := a.controller.OpenSide(ctx, nav, a.authorizer())
	if err != nil {
		return err
	}

	var sizes map[string]int64
	if *probe {
		sizes = probeSizes(ctx, view.Page.Items)
	}
	printSideView(a.out, view, sizes)
	return nil
}

func printSideView(out io.Writer, v *session.SideView, sizes map[string]int64) {
	fmt.Fprintf(out, "%s / %s / %s\n", v.Location.Name, v.Court.Name, v.Side.Name)
	if v.Empty {
		if v.Nav.Hour != nil {
			fmt.Fprintf(out, "no clips between %s\n", gallery.HourLabel(*v.Nav.Hour))
		} else {
			fmt.Fprintln(out, "no clips yet")
		}
		return
	}

	summary := fmt.Sprintf("page %d of %d, %d clips", v.Page.Index+1, v.Page.TotalPages, v.Page.TotalItems)
	if v.Nav.Hour != nil {
		summary += ", " + gallery.HourLabel(*v.Nav.Hour)
	}
	fmt.Fprintln(out, summary)

	tw := tabwriter.NewWriter(out, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "TIME\tCLIP\tPREVIEW\tSIZE\tOPPOSITE")
	for _, e := range v.Page.Items {
		w := playback.Window(e.Duration)
		preview := fmt.Sprintf("%.0fs+%.0fs", w.Start, w.Length)
		size := "-"
		if n, ok := sizes[e.Name]; ok {
			size = formatBytes(n)
		}
		opp := "-"
		if ref, ok := v.Opposite[e.Name]; ok {
			opp = ref.Side.ID + " " + ref.Entry.Clock
		}
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%s\n", e.Clock, e.Name, preview, size, opp)
	}
	tw.Flush()

	if len(v.Hours) > 0 {
		fmt.Fprint(out, "hours:")
		for _, h := range v.Hours {
			fmt.Fprintf(out, " [%d] %s", h.Hour, h.Label)
		}
		fmt.Fprintln(out)
	}
	if v.ShowPagination {
		if v.Page.HasPrev() {
			fmt.Fprintf(out, "prev: -page %d\n", v.Page.Index-1)
		}
		if v.Page.HasNext() {
			fmt.Fprintf(out, "next: -page %d\n", v.Page.Index+1)
		}
	}
	if v.Adjacent != nil {
		fmt.Fprintf(out, "other side: %s\n", v.Adjacent.ID)
	}
}

// probeSizes asks the host for each clip's size, one request at a time.
func probeSizes(ctx context.Context, entries []catalog.Entry) map[string]int64 {
	client := &http.Client{Timeout: 15 * time.Second}
	byID := make(map[playback.ID]catalog.Entry, len(entries))
	for _, e := range entries {
		byID[playback.ID(e.Name)] = e
	}
	var mu sync.Mutex
	sizes := make(map[string]int64, len(entries))

	q := playback.NewQueue(ctx, func(ctx context.Context, id playback.ID) error {
		e := byID[id]
		req, err := http.NewRequestWithContext(ctx, http.MethodHead, e.URL, nil)
		if err != nil {
			return err
		}
		resp, err := client.Do(req)
		if err != nil {
			return err
		}
		_ = resp.Body.Close()
		if resp.StatusCode != http.StatusOK || resp.ContentLength < 0 {
			return fmt.Errorf("probe %s: status %d", e.Name, resp.StatusCode)
		}
		mu.Lock()
		sizes[e.Name] = resp.ContentLength
		mu.Unlock()
		return nil
	}, len(entries))

	for _, e := range entries {
		if !q.Enqueue(ctx, playback.ID(e.Name)) {
			break
		}
	}
	q.Close()

	mu.Lock()
	defer mu.Unlock()
	return sizes
}

func (a *app) runOpposite(ctx context.Context, args []string) error {
	if len(args) != 4 {
		return usageError("usage: clipget opposite <loc> <can> <lado> <video>")
	}
	nav, err := sideNav(args)
	if err != nil {
		return err
	}
	ref, err := a.controller.Opposite(ctx, nav, args[3], a.authorizer())
	if err != nil {
		return err
	}
	if ref == nil {
		fmt.Fprintln(a.out, "no matching clip from the other camera")
		return nil
	}
	fmt.Fprintf(a.out, "%s %s (%+.0fs)\n%s\n", ref.Side.ID, ref.Entry.Name, ref.Delta.Seconds(), ref.Entry.URL)
	return nil
}

func (a *app) runDownload(ctx context.Context, args []string) error {
	if len(args) != 4 {
		return usageError("usage: clipget download <loc> <can> <lado> <video>")
	}
	nav, err := sideNav(args)
	if err != nil {
		return err
	}
	if msg := validate.ClipName(args[3]); msg != "" {
		return usageError(msg)
	}
	entry, err := a.controller.Clip(ctx, nav, args[3], a.authorizer())
	if err != nil {
		return err
	}

	sess := a.controller.Transfer(entry)
	done := make(chan struct{})
	defer close(done)
	go func() {
		select {
		case <-ctx.Done():
			sess.Cancel()
		case <-done:
		}
	}()

	runCtx := context.WithoutCancel(ctx)
	res, err := sess.Run(runCtx, a.progressPrinter(entry.Name))
	fmt.Fprintln(a.out)
	if errors.Is(err, transfer.ErrAborted) {
		return err
	}
	if err != nil {
		if res.Outcome == transfer.OutcomeDirectLink {
			fmt.Fprintf(a.out, "download failed, open directly: %s\n", res.Location)
		}
		return err
	}
	if res.Outcome == transfer.OutcomePending {
		if res, err = sess.Share(runCtx); err != nil {
			return err
		}
	}

	switch res.Outcome {
	case transfer.OutcomeShared:
		fmt.Fprintf(a.out, "share link: %s\n%s\n", res.Location, gallery.RetentionNotice)
	case transfer.OutcomeSaved:
		fmt.Fprintf(a.out, "saved to %s\n", res.Location)
	case transfer.OutcomeDirectLink:
		fmt.Fprintf(a.out, "direct link: %s\n", res.Location)
	}
	return nil
}

func (a *app) progressPrinter(name string) func(transfer.Progress) {
	return func(p transfer.Progress) {
		if pct, ok := p.Percent(); ok {
			fmt.Fprintf(a.out, "\r%s %3d%%", name, pct)
			return
		}
		fmt.Fprintf(a.out, "\r%s %s", name, formatBytes(p.Received))
	}
}

func runDeliveries(ctx context.Context, cfg Config, args []string, out io.Writer) error {
	fs := newFlagSet("deliveries")
	limit := fs.Int("limit", 20, "maximum rows")
	if err := fs.Parse(args); err != nil || fs.NArg() != 1 {
		return usageError("usage: clipget deliveries [-limit n] <subject>")
	}
	if cfg.DatabaseURL == "" {
		return errors.New("deliveries need database_url")
	}
	db, err := database.Connect(ctx, cfg.DatabaseURL)
	if err != nil {
		return err
	}
	defer db.Close()
	return printDeliveries(ctx, webhook.New(db.Pool, "", ""), fs.Arg(0), *limit, out)
}

func printDeliveries(ctx context.Context, hooks *webhook.Client, subject string, limit int, out io.Writer) error {
	rows, err := hooks.RecentDeliveries(ctx, subject, limit)
	if err != nil {
		return err
	}
	tw := tabwriter.NewWriter(out, 0, 4, 2, ' ', 0)
	defer tw.Flush()
	fmt.Fprintln(tw, "WHEN\tEVENT\tSTATUS\tATTEMPT")
	for _, d := range rows {
		status := "-"
		if d.StatusCode != nil {
			status = strconv.Itoa(*d.StatusCode)
		}
		fmt.Fprintf(tw, "%s\t%s\t%s\t%d\n", d.CreatedAt.Local().Format(time.DateTime), d.Event, status, d.Attempt)
	}
	return nil
}

func formatBytes(n int64) string {
	const unit = 1024
	if n < unit {
		return fmt.Sprintf("%d B", n)
	}
	div, exp := int64(unit), 0
	for m := n / unit; m >= unit; m /= unit {
		div *= unit
		exp++
	}
	return fmt.Sprintf("%.1f %cB", float64(n)/float64(div), "KMGTPE"[exp])
}

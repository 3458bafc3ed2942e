// tideline is a command line front end for the offline-aware Jellyfin
// client core: it browses the library through the content resolver,
// manages the download queue and runs transfers, toggles offline mode
// and maintains the listen queue.
package main

import (
	"bufio"
	"context"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"
	"text/tabwriter"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/schollz/progressbar/v3"

	"github.com/cmarret/tideline/internal/artwork"
	"github.com/cmarret/tideline/internal/config"
	"github.com/cmarret/tideline/internal/connectivity"
	"github.com/cmarret/tideline/internal/demo"
	"github.com/cmarret/tideline/internal/downloads"
	"github.com/cmarret/tideline/internal/errmsg"
	"github.com/cmarret/tideline/internal/jellyfin"
	"github.com/cmarret/tideline/internal/lastfm"
	"github.com/cmarret/tideline/internal/listenbrainz"
	"github.com/cmarret/tideline/internal/music"
	"github.com/cmarret/tideline/internal/reconcile"
	"github.com/cmarret/tideline/internal/resolver"
	"github.com/cmarret/tideline/internal/scrobble"
	"github.com/cmarret/tideline/internal/state"
	"github.com/cmarret/tideline/internal/transfer"
)

const version = "0.1.0"

const probeTimeout = 5 * time.Second

func main() {
	flag.Usage = usage
	flag.Parse()

	if flag.NArg() == 0 {
		usage()
		os.Exit(2)
	}
	command, args := flag.Arg(0), flag.Args()[1:]
	if command == "help" {
		usage()
		return
	}

	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintln(os.Stderr, errmsg.Format(errmsg.OpConfigLoad, err))
		os.Exit(1)
	}

	logger := newLogger(cfg.GetLogLevel())
	slog.SetDefault(logger)

	a, err := newApp(cfg, logger)
	if err != nil {
		fmt.Fprintln(os.Stderr, errmsg.Format(errmsg.OpInitialize, err))
		os.Exit(1)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	err = a.run(ctx, command, args)
	stop()
	a.close()

	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func usage() {
	out := flag.CommandLine.Output()
	fmt.Fprintf(out, "Usage: %s <command> [flags]\n\n", filepath.Base(os.Args[0]))
	fmt.Fprint(out, `Commands:
  status            connectivity, active source and download summary
  albums            list albums from the active source
  artists           list artists from the active source
  tracks            list tracks, optionally narrowed with -q
  album             list one album's tracks (-id; -name resolves offline)
  artist            list an artist's tracks (-id; -name, -top)
  favorites         list favorite tracks
  search            search albums, artists and tracks
  download          queue an album (or favorites) for download
  downloads         list download records (-verify checks files on disk)
  retry             re-queue a failed download by track id
  delete            remove a download and its local files
  clear-downloads   remove every download record and local file
  offline           show or set offline mode (on, off, toggle)
  sync              download everything queued
  listens           show queued listens (-flush submits them)
  lastfm-auth       link a Last.fm account

Run a command with -h for its flags. Configuration is read from
~/.config/tideline/config.toml, then ./config.toml.
`)
}

func newLogger(level string) *slog.Logger {
	var lvl slog.Level
	switch level {
	case "debug":
		lvl = slog.LevelDebug
	case "warn":
		lvl = slog.LevelWarn
	case "error":
		lvl = slog.LevelError
	default:
		lvl = slog.LevelInfo
	}
	return slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: lvl}))
}

// app holds the wired components shared by every command.
type app struct {
	cfg    *config.Config
	logger *slog.Logger

	st       *state.Manager
	tracker  *connectivity.Tracker
	client   *jellyfin.Client
	store    *downloads.Store
	res      *resolver.Resolver
	engine   *transfer.Engine
	reporter *scrobble.Reporter
	lfm      *lastfm.Client

	probed bool
}

func newApp(cfg *config.Config, logger *slog.Logger) (*app, error) {
	st, err := state.Open()
	if err != nil {
		return nil, fmt.Errorf("open state database: %w", err)
	}

	tracker := connectivity.New(st, logger)

	deviceID, err := st.DeviceID()
	if err != nil {
		logger.Warn("load device id", "error", err)
	}
	client := jellyfin.NewClient(jellyfin.Config{
		BaseURL:    cfg.Server.URL,
		Token:      cfg.Server.Token,
		UserID:     cfg.Server.UserID,
		ClientName: cfg.Server.ClientName,
		DeviceID:   deviceID,
		Version:    version,
	})

	store := downloads.New(st.DB())
	res := resolver.New(client, store, tracker, cfg.Server.LibraryID)
	if cfg.Demo {
		res.UseDemo(demo.New())
	}

	dl := cfg.GetDownloadsConfig()
	engine := transfer.New(store, client, dl.Dir, transfer.Options{
		MaxConcurrent:   dl.MaxConcurrent,
		ArtworkMaxWidth: cfg.GetArtworkConfig().MaxWidth,
		Logger:          logger,
	})

	lfm := lastfm.New(cfg.Lastfm.APIKey, cfg.Lastfm.APISecret)
	if sess, err := st.GetLastfmSession(); err == nil && sess != nil {
		lfm.SetSessionKey(sess.SessionKey)
	}
	lb := listenbrainz.New(listenbrainz.Config{Token: cfg.ListenBrainz.Token})
	reporter := scrobble.New(st, tracker, logger,
		scrobble.NewListenBrainzBackend(lb),
		scrobble.NewLastfmBackend(lfm),
	)

	return &app{
		cfg:      cfg,
		logger:   logger,
		st:       st,
		tracker:  tracker,
		client:   client,
		store:    store,
		res:      res,
		engine:   engine,
		reporter: reporter,
		lfm:      lfm,
	}, nil
}

func (a *app) close() {
	a.engine.Close()
	a.tracker.Close()
	if err := a.st.Close(); err != nil {
		a.logger.Warn("close state database", "error", err)
	}
}

// probe checks server reachability once per run and records the result,
// so the resolver falls back to downloads when the server is gone. No
// request is made in demo or offline mode.
func (a *app) probe(ctx context.Context) {
	if a.probed {
		return
	}
	a.probed = true

	if a.cfg.Demo || a.tracker.OfflineMode() {
		return
	}
	if !a.cfg.HasServerConfig() {
		a.tracker.SetNetworkAvailable(false)
		return
	}

	pctx, cancel := context.WithTimeout(ctx, probeTimeout)
	defer cancel()
	if err := a.client.Ping(pctx); err != nil {
		a.logger.Debug("server unreachable", "error", err)
		a.tracker.SetNetworkAvailable(false)
	}
}

func (a *app) run(ctx context.Context, command string, args []string) error {
	switch command {
	case "status":
		return a.cmdStatus(ctx)
	case "albums":
		return a.cmdAlbums(ctx)
	case "artists":
		return a.cmdArtists(ctx)
	case "tracks":
		return a.cmdTracks(ctx, args)
	case "album":
		return a.cmdAlbum(ctx, args)
	case "artist":
		return a.cmdArtist(ctx, args)
	case "favorites":
		return a.cmdFavorites(ctx)
	case "search":
		return a.cmdSearch(ctx, args)
	case "download":
		return a.cmdDownload(ctx, args)
	case "downloads":
		return a.cmdDownloads(args)
	case "retry":
		return a.cmdRetry(args)
	case "delete":
		return a.cmdDelete(args)
	case "clear-downloads":
		return a.cmdClearDownloads(args)
	case "offline":
		return a.cmdOffline(args)
	case "sync":
		return a.cmdSync(ctx)
	case "listens":
		return a.cmdListens(ctx, args)
	case "lastfm-auth":
		return a.cmdLastfmAuth()
	default:
		usage()
		return fmt.Errorf("unknown command %q", command)
	}
}

func (a *app) cmdStatus(ctx context.Context) error {
	a.probe(ctx)

	snap := a.tracker.Snapshot()
	st := reconcile.StateOf(snap)

	counts, err := a.store.Counts()
	if err != nil {
		return fmt.Errorf("read download counts: %w", err)
	}
	pending, err := a.st.PendingListenCount()
	if err != nil {
		return fmt.Errorf("count pending listens: %w", err)
	}

	server := "(not configured)"
	switch {
	case a.cfg.Demo:
		server = "(demo catalog)"
	case a.cfg.HasServerConfig():
		server = a.cfg.Server.URL
	}

	var backends []string
	if a.cfg.HasListenBrainzConfig() {
		backends = append(backends, "listenbrainz")
	}
	if sess, err := a.st.GetLastfmSession(); err == nil && sess != nil {
		backends = append(backends, "lastfm ("+sess.Username+")")
	}

	w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
	fmt.Fprintf(w, "State:\t%s\n", st)
	if st == reconcile.StateOnlineDisconnected {
		fmt.Fprintf(w, "Banner:\t%s\n", reconcile.BannerDegraded)
	}
	fmt.Fprintf(w, "Source:\t%s\n", a.res.Source())
	fmt.Fprintf(w, "Server:\t%s\n", server)
	fmt.Fprintf(w, "Downloads:\t%d completed (%s), %d queued, %d downloading, %d failed\n",
		counts.Completed, humanize.Bytes(uint64(counts.CompletedBytes)),
		counts.Queued, counts.Downloading, counts.Failed)
	fmt.Fprintf(w, "Directory:\t%s\n", a.cfg.GetDownloadsConfig().Dir)
	if len(backends) > 0 {
		fmt.Fprintf(w, "Listens:\t%s\n", strings.Join(backends, ", "))
	} else {
		fmt.Fprintf(w, "Listens:\t(no backend configured)\n")
	}
	if pending > 0 {
		fmt.Fprintf(w, "Pending:\t%d listens queued (run 'tideline listens -flush')\n", pending)
	}
	return w.Flush()
}

func (a *app) cmdAlbums(ctx context.Context) error {
	a.probe(ctx)
	res, err := a.res.Albums(ctx)
	if err != nil {
		return fail(errmsg.OpResolveAlbums, err)
	}
	printAlbums(res.Items)
	fmt.Printf("\n%d albums (source: %s)\n", len(res.Items), res.Source)
	return nil
}

func (a *app) cmdArtists(ctx context.Context) error {
	a.probe(ctx)
	res, err := a.res.Artists(ctx)
	if err != nil {
		return fail(errmsg.OpResolveArtists, err)
	}
	printArtists(res.Items)
	fmt.Printf("\n%d artists (source: %s)\n", len(res.Items), res.Source)
	return nil
}

func (a *app) cmdTracks(ctx context.Context, args []string) error {
	fs := flag.NewFlagSet("tracks", flag.ExitOnError)
	query := fs.String("q", "", "narrow the list (name, artist or album substring)")
	fs.Parse(args)

	a.probe(ctx)
	res, err := a.res.Tracks(ctx, *query)
	if err != nil {
		return fail(errmsg.OpResolveTracks, err)
	}
	printTracks(res.Items, nil)
	fmt.Printf("\n%d tracks (source: %s)\n", len(res.Items), res.Source)
	return nil
}

func (a *app) cmdAlbum(ctx context.Context, args []string) error {
	fs := flag.NewFlagSet("album", flag.ExitOnError)
	id := fs.String("id", "", "album id (required)")
	name := fs.String("name", "", "album name, used to resolve while offline")
	palette := fs.Bool("palette", false, "also extract the cover palette")
	fs.Parse(args)
	if *id == "" && *name == "" {
		return errors.New("album: -id is required (-name while offline)")
	}

	a.probe(ctx)
	res, err := a.res.AlbumTracks(ctx, *id, *name)
	if err != nil {
		return fail(errmsg.OpResolveAlbumTracks, err)
	}
	if len(res.Items) == 0 {
		fmt.Printf("no tracks (source: %s)\n", res.Source)
		return nil
	}

	first := res.Items[0]
	var total time.Duration
	for _, t := range res.Items {
		total += t.Duration
	}
	fmt.Printf("%s by %s (%d tracks, %s)\n\n", first.Album, first.Artist, len(res.Items), formatDuration(total))
	printTracks(res.Items, music.DisplayNumbers(res.Items))
	fmt.Printf("\nsource: %s\n", res.Source)

	if *palette {
		a.printPalette(ctx, first.AlbumID, first.AlbumImageTag)
	}
	return nil
}

// printPalette runs one palette extraction through the artwork loader
// and prints the swatches. Only useful against a reachable server.
func (a *app) printPalette(ctx context.Context, albumID, imageTag string) {
	if imageTag == "" || a.res.Source() != resolver.SourceServer {
		fmt.Println("palette: no cover image available")
		return
	}

	loader := artwork.NewLoader(a.client, a.logger)
	defer loader.Close()
	loader.Request(albumID, imageTag)

	select {
	case res := <-loader.Results:
		if res.Err != nil {
			fmt.Fprintln(os.Stderr, errmsg.Format(errmsg.OpArtworkLoad, res.Err))
			return
		}
		fmt.Printf("palette: %s dominant, %s accent\n", res.Palette.Dominant, res.Palette.Accent)
		for _, s := range res.Palette.Swatches {
			fmt.Printf("  %s (%d px)\n", s.Hex, s.Population)
		}
	case <-time.After(30 * time.Second):
		fmt.Fprintln(os.Stderr, "palette: timed out")
	case <-ctx.Done():
	}
}

func (a *app) cmdArtist(ctx context.Context, args []string) error {
	fs := flag.NewFlagSet("artist", flag.ExitOnError)
	id := fs.String("id", "", "artist id (required)")
	name := fs.String("name", "", "artist name, used to resolve while offline")
	top := fs.Int("top", 0, "show only the N most played tracks")
	fs.Parse(args)
	if *id == "" && *name == "" {
		return errors.New("artist: -id is required (-name while offline)")
	}

	a.probe(ctx)
	var sortBy, sortOrder string
	limit := 0
	if *top > 0 {
		sortBy, sortOrder, limit = "PlayCount", "Descending", *top
	}
	res, err := a.res.ArtistTracks(ctx, *id, *name, limit, sortBy, sortOrder)
	if err != nil {
		return fail(errmsg.OpResolveArtistTracks, err)
	}
	printTracks(res.Items, nil)
	fmt.Printf("\n%d tracks (source: %s)\n", len(res.Items), res.Source)
	return nil
}

func (a *app) cmdFavorites(ctx context.Context) error {
	a.probe(ctx)
	res, err := a.res.FavoriteTracks(ctx)
	if err != nil {
		return fail(errmsg.OpResolveTracks, err)
	}
	printTracks(res.Items, nil)
	fmt.Printf("\n%d favorites (source: %s)\n", len(res.Items), res.Source)
	return nil
}

func (a *app) cmdSearch(ctx context.Context, args []string) error {
	fs := flag.NewFlagSet("search", flag.ExitOnError)
	fs.Parse(args)
	query := strings.TrimSpace(strings.Join(fs.Args(), " "))
	if query == "" {
		return errors.New("search: a query is required")
	}

	a.probe(ctx)

	var (
		albums  []music.Album
		artists []music.Artist
		tracks  []music.Track
		err     error
	)
	source := a.res.Source()
	if source == resolver.SourceServer {
		// The server does the matching for every entity type.
		libID := a.cfg.Server.LibraryID
		if albums, err = a.client.SearchAlbums(ctx, libID, query); err != nil {
			return fail(errmsg.OpSearch, err)
		}
		if artists, err = a.client.SearchArtists(ctx, libID, query); err != nil {
			return fail(errmsg.OpSearch, err)
		}
		if tracks, err = a.client.SearchTracks(ctx, libID, query); err != nil {
			return fail(errmsg.OpSearch, err)
		}
	} else {
		albumsRes, err := a.res.Albums(ctx)
		if err != nil {
			return fail(errmsg.OpSearch, err)
		}
		artistsRes, err := a.res.Artists(ctx)
		if err != nil {
			return fail(errmsg.OpSearch, err)
		}
		tracksRes, err := a.res.Tracks(ctx, query)
		if err != nil {
			return fail(errmsg.OpSearch, err)
		}
		albums = matchAlbums(albumsRes.Items, query)
		artists = matchArtists(artistsRes.Items, query)
		tracks = tracksRes.Items
	}

	if len(albums) > 0 {
		fmt.Printf("Albums (%d)\n", len(albums))
		printAlbums(albums)
		fmt.Println()
	}
	if len(artists) > 0 {
		fmt.Printf("Artists (%d)\n", len(artists))
		printArtists(artists)
		fmt.Println()
	}
	if len(tracks) > 0 {
		fmt.Printf("Tracks (%d)\n", len(tracks))
		printTracks(tracks, nil)
		fmt.Println()
	}
	if len(albums)+len(artists)+len(tracks) == 0 {
		fmt.Printf("no matches for %q (source: %s)\n", query, source)
		return nil
	}
	fmt.Printf("source: %s\n", source)
	return nil
}

func matchAlbums(albums []music.Album, query string) []music.Album {
	q := strings.ToLower(query)
	var out []music.Album
	for _, al := range albums {
		if strings.Contains(strings.ToLower(al.Name), q) || strings.Contains(strings.ToLower(al.Artist), q) {
			out = append(out, al)
		}
	}
	return out
}

func matchArtists(artists []music.Artist, query string) []music.Artist {
	q := strings.ToLower(query)
	var out []music.Artist
	for _, ar := range artists {
		if strings.Contains(strings.ToLower(ar.Name), q) {
			out = append(out, ar)
		}
	}
	return out
}

func (a *app) cmdDownload(ctx context.Context, args []string) error {
	fs := flag.NewFlagSet("download", flag.ExitOnError)
	albumID := fs.String("album", "", "album id to queue")
	albumName := fs.String("name", "", "album name, used to resolve while offline")
	trackID := fs.String("track", "", "queue only this track of the album")
	favorites := fs.Bool("favorites", false, "queue every favorite track")
	fs.Parse(args)

	if *albumID == "" && !*favorites {
		return errors.New("download: -album or -favorites is required")
	}
	if a.res.Source() == resolver.SourceDemo {
		return errors.New("download: demo tracks cannot be downloaded")
	}

	a.probe(ctx)
	var tracks []music.Track
	if *favorites {
		res, err := a.res.FavoriteTracks(ctx)
		if err != nil {
			return fail(errmsg.OpDownloadQueue, err)
		}
		tracks = res.Items
	} else {
		res, err := a.res.AlbumTracks(ctx, *albumID, *albumName)
		if err != nil {
			return fail(errmsg.OpDownloadQueue, err)
		}
		tracks = res.Items
	}

	queued, skipped := 0, 0
	for _, t := range tracks {
		if *trackID != "" && t.ID != *trackID {
			continue
		}
		switch err := a.store.Queue(t, 0); {
		case errors.Is(err, downloads.ErrExists):
			skipped++
		case err != nil:
			return fail(errmsg.OpDownloadQueue, err)
		default:
			queued++
			fmt.Printf("queued  %s - %s\n", t.Artist, t.Name)
		}
	}
	if *trackID != "" && queued+skipped == 0 {
		return fmt.Errorf("download: track %s is not part of album %s", *trackID, *albumID)
	}
	if skipped > 0 {
		fmt.Printf("%d already tracked\n", skipped)
	}
	if queued > 0 {
		fmt.Printf("%d queued (run 'tideline sync' to download)\n", queued)
	}
	return nil
}

func (a *app) cmdDownloads(args []string) error {
	fs := flag.NewFlagSet("downloads", flag.ExitOnError)
	verify := fs.Bool("verify", false, "re-queue completed downloads whose files are missing")
	fs.Parse(args)

	if *verify {
		requeued, err := a.engine.VerifyOnDisk()
		if err != nil {
			return fail(errmsg.OpDownloadVerify, err)
		}
		for _, t := range requeued {
			fmt.Printf("missing on disk, re-queued  %s - %s\n", t.Artist, t.Name)
		}
		if len(requeued) == 0 {
			fmt.Println("all completed downloads verified")
		}
		fmt.Println()
	}

	records, err := a.store.List()
	if err != nil {
		return fmt.Errorf("list downloads: %w", err)
	}
	if len(records) == 0 {
		fmt.Println("no downloads")
		return nil
	}

	w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
	fmt.Fprintln(w, "STATUS\tTRACK\tARTIST\tALBUM\tDETAIL")
	for i := range records {
		r := &records[i]
		fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%s\n",
			r.Status, r.Track.Name, r.Track.Artist, r.Track.Album, downloadDetail(r))
	}
	return w.Flush()
}

func downloadDetail(r *downloads.Record) string {
	switch r.Status {
	case downloads.StatusCompleted:
		return humanize.Bytes(uint64(r.TotalBytes))
	case downloads.StatusDownloading:
		if r.TotalBytes > 0 {
			return fmt.Sprintf("%.0f%% of %s", r.Progress(), humanize.Bytes(uint64(r.TotalBytes)))
		}
		return humanize.Bytes(uint64(r.BytesDownloaded))
	case downloads.StatusFailed:
		return r.Error
	default:
		return ""
	}
}

func (a *app) cmdRetry(args []string) error {
	if len(args) != 1 {
		return errors.New("retry: exactly one track id is required")
	}
	if err := a.store.Retry(args[0]); err != nil {
		return fail(errmsg.OpDownloadRetry, err)
	}
	fmt.Println("re-queued (run 'tideline sync' to download)")
	return nil
}

func (a *app) cmdDelete(args []string) error {
	if len(args) != 1 {
		return errors.New("delete: exactly one track id is required")
	}
	if err := a.engine.Remove(args[0]); err != nil {
		return fail(errmsg.OpDownloadDelete, err)
	}
	fmt.Println("deleted")
	return nil
}

func (a *app) cmdClearDownloads(args []string) error {
	fs := flag.NewFlagSet("clear-downloads", flag.ExitOnError)
	yes := fs.Bool("yes", false, "skip the confirmation prompt")
	fs.Parse(args)

	counts, err := a.store.Counts()
	if err != nil {
		return fmt.Errorf("read download counts: %w", err)
	}
	if counts.Total() == 0 {
		fmt.Println("no downloads")
		return nil
	}

	if !*yes {
		fmt.Printf("Remove %d download records and their local files? [y/N] ", counts.Total())
		line, err := bufio.NewReader(os.Stdin).ReadString('\n')
		if err != nil {
			return err
		}
		switch strings.ToLower(strings.TrimSpace(line)) {
		case "y", "yes":
		default:
			fmt.Println("aborted")
			return nil
		}
	}

	if err := a.engine.Clear(); err != nil {
		return fail(errmsg.OpDownloadClear, err)
	}
	fmt.Printf("removed %d downloads\n", counts.Total())
	return nil
}

func (a *app) cmdOffline(args []string) error {
	if len(args) > 0 {
		switch args[0] {
		case "on":
			a.tracker.SetOfflineMode(true)
		case "off":
			a.tracker.SetOfflineMode(false)
		case "toggle":
			a.tracker.ToggleOfflineMode()
		default:
			return fmt.Errorf("offline: unknown argument %q (want on, off or toggle)", args[0])
		}
	}
	fmt.Printf("offline mode: %s\n", onOff(a.tracker.OfflineMode()))
	return nil
}

func onOff(v bool) string {
	if v {
		return "on"
	}
	return "off"
}

func (a *app) cmdSync(ctx context.Context) error {
	a.probe(ctx)
	snap := a.tracker.Snapshot()
	if snap.OfflineMode {
		return errors.New("sync: offline mode is on")
	}
	if !snap.NetworkAvailable {
		return errors.New("sync: server is not reachable")
	}

	counts, err := a.store.Counts()
	if err != nil {
		return fmt.Errorf("read download counts: %w", err)
	}
	if counts.Queued == 0 {
		fmt.Println("nothing queued")
		return nil
	}

	bar := progressbar.NewOptions(
		counts.Queued,
		progressbar.OptionSetWriter(os.Stderr),
		progressbar.OptionSetTheme(progressbar.ThemeASCII),
		progressbar.OptionFullWidth(),
		progressbar.OptionShowCount(),
		progressbar.OptionSetDescription("downloading"),
	)

	sub := a.engine.Subscribe()
	done := make(chan struct{})
	var failed []transfer.Event
	go func() {
		defer close(done)
		for {
			select {
			case ev := <-sub.Events:
				switch ev.Status {
				case downloads.StatusCompleted, downloads.StatusFailed:
					bar.Add(1)
					if ev.Status == downloads.StatusFailed {
						failed = append(failed, ev)
					}
				}
			case <-sub.Done:
				return
			}
		}
	}()

	runErr := a.engine.Run(ctx)
	a.engine.Close()
	<-done
	bar.Finish()
	fmt.Fprintln(os.Stderr)

	if runErr != nil && !errors.Is(runErr, context.Canceled) {
		return fail(errmsg.OpDownloadRun, runErr)
	}

	after, err := a.store.Counts()
	if err != nil {
		return fmt.Errorf("read download counts: %w", err)
	}
	fmt.Printf("%d completed (%s on disk), %d failed\n",
		after.Completed, humanize.Bytes(uint64(after.CompletedBytes)), len(failed))
	for _, ev := range failed {
		if rec, err := a.store.Get(ev.TrackID); err == nil {
			fmt.Printf("  failed  %s - %s: %s\n", rec.Track.Artist, rec.Track.Name, ev.Error)
		}
	}
	if errors.Is(runErr, context.Canceled) {
		return errors.New("sync: interrupted")
	}
	return nil
}

func (a *app) cmdListens(ctx context.Context, args []string) error {
	fs := flag.NewFlagSet("listens", flag.ExitOnError)
	flush := fs.Bool("flush", false, "submit queued listens to the configured backends")
	fs.Parse(args)

	if *flush {
		a.probe(ctx)
		flushed, err := a.reporter.Flush(ctx)
		if flushed > 0 {
			fmt.Printf("submitted %d queued listens\n", flushed)
		}
		if err != nil {
			return fail(errmsg.OpListenFlush, err)
		}
	}

	listens, err := a.st.PendingListens()
	if err != nil {
		return fmt.Errorf("read pending listens: %w", err)
	}
	if len(listens) == 0 {
		fmt.Println("no queued listens")
		return nil
	}

	w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
	fmt.Fprintln(w, "LISTENED\tTRACK\tARTIST\tATTEMPTS\tLAST ERROR")
	for _, l := range listens {
		fmt.Fprintf(w, "%s\t%s\t%s\t%d\t%s\n",
			l.ListenedAt.Format("2006-01-02 15:04"), l.Track, l.Artist, l.Attempts, l.LastError)
	}
	return w.Flush()
}

func (a *app) cmdLastfmAuth() error {
	if !a.cfg.HasLastfmConfig() {
		return errors.New("lastfm-auth: set [lastfm] api_key and api_secret in the config first")
	}

	token, err := a.lfm.GetToken()
	if err != nil {
		return fail(errmsg.OpLastfmAuth, err)
	}
	authURL := a.lfm.GetAuthURL(token)

	fmt.Printf("Authorize tideline in your browser:\n\n  %s\n\n", authURL)
	if err := lastfm.OpenBrowser(authURL); err != nil {
		a.logger.Debug("open browser", "error", err)
	}
	fmt.Print("Press Enter once you have authorized the application... ")
	if _, err := bufio.NewReader(os.Stdin).ReadString('\n'); err != nil {
		return err
	}

	username, key, err := a.lfm.GetSession(token)
	if err != nil {
		return fail(errmsg.OpLastfmAuth, err)
	}
	if err := a.st.SaveLastfmSession(username, key); err != nil {
		return fail(errmsg.OpLastfmAuth, err)
	}
	fmt.Printf("Linked Last.fm account %s.\n", username)
	return nil
}

// fail renders a user-facing failure line for a command.
func fail(op errmsg.Op, err error) error {
	return errors.New(errmsg.Format(op, err))
}

func printAlbums(albums []music.Album) {
	w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
	fmt.Fprintln(w, "ALBUM\tARTIST\tYEAR\tTRACKS\tID")
	for _, al := range albums {
		year := ""
		if al.Year > 0 {
			year = fmt.Sprintf("%d", al.Year)
		}
		fmt.Fprintf(w, "%s\t%s\t%s\t%d\t%s\n", al.Name, al.Artist, year, al.TrackCount, al.ID)
	}
	w.Flush()
}

func printArtists(artists []music.Artist) {
	w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
	fmt.Fprintln(w, "ARTIST\tALBUMS\tSONGS\tID")
	for _, ar := range artists {
		fmt.Fprintf(w, "%s\t%d\t%d\t%s\n", ar.Name, ar.AlbumCount, ar.SongCount, ar.ID)
	}
	w.Flush()
}

// printTracks renders a track table. nums overrides the position column
// (album listings pass display numbers); nil numbers rows 1..n.
func printTracks(tracks []music.Track, nums []int) {
	w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
	fmt.Fprintln(w, "#\tTRACK\tARTIST\tALBUM\tLENGTH\tID")
	for i, t := range tracks {
		n := i + 1
		if nums != nil {
			n = nums[i]
		}
		fav := ""
		if t.Favorite {
			fav = " *"
		}
		fmt.Fprintf(w, "%d\t%s%s\t%s\t%s\t%s\t%s\n",
			n, t.Name, fav, t.Artist, t.Album, formatDuration(t.Duration), t.ID)
	}
	w.Flush()
}

func formatDuration(d time.Duration) string {
	total := int(d.Round(time.Second).Seconds())
	if total >= 3600 {
		return fmt.Sprintf("%d:%02d:%02d", total/3600, (total%3600)/60, total%60)
	}
	return fmt.Sprintf("%d:%02d", total/60, total%60)
}

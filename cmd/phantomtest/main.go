// Command phantomtest runs an ASTM F2554 tracking accuracy session
// against an OpenIGTLink tracker bridge: phantom calibration, working
// volume placement guidance and the test battery, ending with the
// report files and an archive entry.
package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"strconv"
	"strings"
	"sync"
	"syscall"
	"time"

	"github.com/Atracsys/SlicerAstmPhantomTest/internal/api"
	"github.com/Atracsys/SlicerAstmPhantomTest/internal/config"
	"github.com/Atracsys/SlicerAstmPhantomTest/internal/geom"
	"github.com/Atracsys/SlicerAstmPhantomTest/internal/igtl"
	"github.com/Atracsys/SlicerAstmPhantomTest/internal/phantom"
	"github.com/Atracsys/SlicerAstmPhantomTest/internal/report"
	"github.com/Atracsys/SlicerAstmPhantomTest/internal/session"
	"github.com/Atracsys/SlicerAstmPhantomTest/internal/store"
	"github.com/Atracsys/SlicerAstmPhantomTest/internal/track"
	"github.com/Atracsys/SlicerAstmPhantomTest/internal/version"
	"github.com/Atracsys/SlicerAstmPhantomTest/internal/wv"
)

var (
	devMode     = flag.Bool("dev", false, "Run without a tracker connection")
	fixtures    = flag.String("fixtures", "", "Pose fixture file replayed in dev mode")
	listen      = flag.String("listen", ":8080", "Listen address")
	connect     = flag.String("connect", "localhost:18944", "OpenIGTLink bridge address (ignored in dev mode)")
	gtFile      = flag.String("gt", "", "Phantom ground truth file")
	wvFile      = flag.String("wv", "", "Working volume file")
	ptrFile     = flag.String("ptr", "", "Pointer definition file")
	optionsFile = flag.String("options", "", "Session options JSON file (optional)")
	outDir      = flag.String("out", ".", "Report output directory")
	dbFile      = flag.String("db", "sessions.db", "Session archive database (empty disables archiving)")
	showVersion = flag.Bool("version", false, "Print version and exit")
)

// OpenIGTLink device names published by the tracker bridge.
const (
	devPointerToPhantom = "PointerToPhantom"
	devPhantomToTracker = "PhantomToTracker"
	devPointerToTracker = "PointerToTracker"
)

func main() {
	flag.Parse()

	if *showVersion {
		fmt.Printf("phantomtest %s (%s, built %s)\n", version.Version, version.GitSHA, version.BuildTime)
		return
	}

	if *listen == "" {
		log.Fatal("Listen address is required")
	}
	if *gtFile == "" || *wvFile == "" || *ptrFile == "" {
		log.Fatal("Ground truth (-gt), working volume (-wv) and pointer (-ptr) files are required")
	}

	ptr := track.NewPointer()
	if err := config.LoadPointer(*ptrFile, ptr); err != nil {
		log.Fatalf("Failed to load pointer definition: %v", err)
	}
	ph := phantom.New()
	if err := config.LoadGroundTruth(*gtFile, ph); err != nil {
		log.Fatalf("Failed to load ground truth: %v", err)
	}
	vol := wv.New()
	if err := config.LoadWorkingVolume(*wvFile, vol); err != nil {
		log.Fatalf("Failed to load working volume: %v", err)
	}

	ctl := session.NewController(ptr, ph, vol)
	if *optionsFile != "" {
		opts, err := config.LoadOptions(*optionsFile)
		if err != nil {
			log.Fatalf("Failed to load options: %v", err)
		}
		if err := opts.Apply(ctl); err != nil {
			log.Fatalf("Failed to apply options: %v", err)
		}
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	var source igtl.Source
	if *devMode {
		mock := igtl.NewMockConn()
		source = igtl.NewMux(mock)
		if *fixtures != "" {
			frames, err := loadFixtures(*fixtures)
			if err != nil {
				log.Fatalf("Failed to load fixtures: %v", err)
			}
			log.Printf("dev mode: replaying %d fixture frames", len(frames))
			go replayFixtures(ctx, mock, frames)
		} else {
			log.Print("dev mode: no tracker connection")
		}
	} else {
		var err error
		source, err = igtl.Dial(ctx, *connect)
		if err != nil {
			log.Fatalf("Failed to connect to tracker: %v", err)
		}
		log.Printf("connected to tracker bridge at %s", *connect)
	}
	defer source.Close()

	var archive *store.Store
	if *dbFile != "" {
		var err error
		archive, err = store.Open(*dbFile)
		if err != nil {
			log.Fatalf("Failed to open session archive: %v", err)
		}
		defer archive.Close()
	}

	feed := api.NewFeed(ctl)
	defer feed.Close()

	// Controller access from HTTP handlers is queued onto the session
	// run loop.
	commands := make(chan func(), 4)

	var wg sync.WaitGroup

	// IO on the tracker connection
	wg.Add(1)
	go func() {
		defer wg.Done()
		if err := source.Monitor(ctx); err != nil && err != context.Canceled {
			log.Printf("tracker monitor failed: %v", err)
		}
		log.Print("monitor routine terminated")
	}()

	// Session run loop. All controller access happens on this
	// goroutine: poses, the acquisition timer and the end of session.
	wg.Add(1)
	go func() {
		defer wg.Done()
		runSession(ctx, cancel, ctl, source, archive, commands)
	}()

	// HTTP server goroutine
	wg.Add(1)
	go func() {
		defer wg.Done()

		mux := api.NewServer(ctl, archive, feed, commands).ServeMux()
		server := &http.Server{
			Addr:    *listen,
			Handler: api.LoggingMiddleware(mux),
		}

		go func() {
			if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
				log.Fatalf("failed to start server: %v", err)
			}
		}()

		<-ctx.Done()
		log.Println("shutting down HTTP server...")

		shutdownCtx, cancel := context.WithTimeout(context.Background(), 1*time.Second)
		defer cancel()
		if err := server.Shutdown(shutdownCtx); err != nil {
			log.Printf("HTTP server shutdown error: %v", err)
			if err := server.Close(); err != nil {
				log.Printf("HTTP server force close error: %v", err)
			}
		}

		log.Printf("HTTP server routine stopped")
	}()

	wg.Wait()
	log.Printf("Graceful shutdown complete")
}

// runSession drives the controller until the battery is exhausted or
// the context is cancelled, then writes the session outputs.
func runSession(ctx context.Context, cancel context.CancelFunc, ctl *session.Controller, source igtl.Source, archive *store.Store, commands <-chan func()) {
	id, poses := source.Subscribe()
	defer source.Unsubscribe(id)

	ended := false
	ctl.SessionEnded.Subscribe(func(struct{}) { ended = true })

	var ptrRef, ptrTracker, ref igtl.Pose

	ticker := time.NewTicker(track.TickInterval)
	defer ticker.Stop()

	ctl.Start()

	for {
		select {
		case p, ok := <-poses:
			if !ok {
				log.Print("tracker stream closed")
				cancel()
				return
			}
			switch p.Tool {
			case devPointerToPhantom:
				ptrRef = p
				ctl.UpdatePose(ptrRef.Matrix, ptrTracker.Matrix.Rotation(), ref.Matrix,
					ptrRef.Visible && ptrTracker.Visible)
			case devPhantomToTracker:
				ref = p
			case devPointerToTracker:
				ptrTracker = p
			}
		case fn := <-commands:
			fn()
		case <-ticker.C:
			ctl.Tick()
		case <-ctx.Done():
			return
		}
		if ended {
			writeOutputs(ctl, archive)
			cancel()
			return
		}
	}
}

// fixtureFrame is one replayed tracker frame: a tool pose with
// identity rotation at a fixture position.
type fixtureFrame struct {
	tool    string
	pos     geom.Vec3
	visible bool
}

// loadFixtures parses a fixture file: one "tool x y z visible" line
// per frame, '#' starts a comment.
func loadFixtures(path string) ([]fixtureFrame, error) {
	data, err := os.ReadFile(filepath.Clean(path))
	if err != nil {
		return nil, fmt.Errorf("failed to read fixtures file: %w", err)
	}

	var frames []fixtureFrame
	for i, line := range strings.Split(string(data), "\n") {
		line = strings.TrimSpace(line)
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		fields := strings.Fields(line)
		if len(fields) != 5 {
			return nil, fmt.Errorf("fixtures line %d: want 5 fields, got %d", i+1, len(fields))
		}
		var fr fixtureFrame
		fr.tool = fields[0]
		for j := 0; j < 3; j++ {
			v, err := strconv.ParseFloat(fields[j+1], 64)
			if err != nil {
				return nil, fmt.Errorf("fixtures line %d: %w", i+1, err)
			}
			fr.pos[j] = v
		}
		fr.visible = fields[4] == "1" || strings.EqualFold(fields[4], "true")
		frames = append(frames, fr)
	}
	return frames, nil
}

// replayFixtures pushes fixture frames at the acquisition cadence.
// Invisible frames become STATUS messages, as the bridge sends them.
func replayFixtures(ctx context.Context, mock *igtl.MockConn, frames []fixtureFrame) {
	ticker := time.NewTicker(track.TickInterval)
	defer ticker.Stop()

	for _, fr := range frames {
		select {
		case <-ticker.C:
		case <-ctx.Done():
			return
		}
		var err error
		if fr.visible {
			m := geom.Mat34{
				{1, 0, 0, fr.pos[0]},
				{0, 1, 0, fr.pos[1]},
				{0, 0, 1, fr.pos[2]},
			}
			err = mock.SendTransform(fr.tool, m, time.Now())
		} else {
			err = mock.SendStatus(fr.tool, igtl.StatusNotFound, time.Now())
		}
		if err != nil {
			log.Printf("fixture replay stopped: %v", err)
			return
		}
	}
	log.Print("fixture replay finished")
}

// writeOutputs emits the JSON archive, HTML report, charts and plots,
// and stores the session in the archive database.
func writeOutputs(ctl *session.Controller, archive *store.Store) {
	res := report.FromSession(ctl)
	stamp := res.Stamp()

	jsonPath := filepath.Join(*outDir, fmt.Sprintf("AstmPhantomTest_data_%s.json", stamp))
	if err := res.WriteJSON(jsonPath); err != nil {
		log.Printf("failed to write session data: %v", err)
	} else {
		log.Printf("wrote session data to %s", jsonPath)
	}

	htmlPath := filepath.Join(*outDir, fmt.Sprintf("AstmPhantomTest_report_%s.html", stamp))
	if err := res.WriteHTML(htmlPath); err != nil {
		log.Printf("failed to write report: %v", err)
	} else {
		log.Printf("wrote report to %s", htmlPath)
	}

	chartsPath := filepath.Join(*outDir, fmt.Sprintf("AstmPhantomTest_charts_%s.html", stamp))
	if err := res.WriteCharts(chartsPath); err != nil {
		log.Printf("failed to write charts: %v", err)
	}

	plotDir := filepath.Join(*outDir, fmt.Sprintf("AstmPhantomTest_plots_%s", stamp))
	if err := os.MkdirAll(plotDir, 0o755); err != nil {
		log.Printf("failed to create plot directory: %v", err)
	} else if err := res.WritePlots(plotDir); err != nil {
		log.Printf("failed to write plots: %v", err)
	}

	if archive != nil {
		id, err := archive.InsertSession(res)
		if err != nil {
			log.Printf("failed to archive session: %v", err)
		} else {
			log.Printf("archived session %s", id)
		}
	}
}

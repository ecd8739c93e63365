package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log"
	"net/http"
	"strings"
	"time"

	"fieldreport/internal/artifact"
	"fieldreport/internal/config"
	"fieldreport/internal/encoding"
	"fieldreport/internal/gallery"
	"fieldreport/internal/geo"
	"fieldreport/internal/mediafs"
	"fieldreport/internal/platform"
	"fieldreport/internal/report"
	"fieldreport/internal/report/httpapi"
	"fieldreport/internal/report/objectstore"
	"fieldreport/internal/submit"
)

func main() {
	files := flag.String("files", "", "comma-separated media files under MEDIA_ROOT to attach")
	formType := flag.String("form", "sighting", "report category key")
	notes := flag.String("notes", "", "report notes")
	mood := flag.String("mood", "", "optional mood notes")
	date := flag.String("date", time.Now().Format("2006-01-02"), "report date (YYYY-MM-DD)")
	lat := flag.Float64("lat", 91, "latitude; omit to fail without a coordinate")
	lng := flag.Float64("lng", 181, "longitude")
	listOnly := flag.Bool("list", false, "fetch and print existing reports, then exit")
	flag.Parse()

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("load config: %v", err)
	}

	profile := platform.Classify(cfg.UserAgent)
	log.Printf("capture profile: %s", profile)

	backend, err := buildBackend(cfg)
	if err != nil {
		log.Fatalf("build %s backend: %v", cfg.Backend, err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Minute)
	defer cancel()

	if *listOnly {
		reports, err := backend.List(ctx)
		if err != nil {
			log.Fatalf("fetch reports: %v", err)
		}
		for _, r := range reports {
			fmt.Printf("%s  %-12s  %s  %s\n", r.CreatedAt.Format(time.RFC3339), r.FormType, r.Coordinate, r.Notes)
		}
		return
	}

	coll, err := buildCollection(cfg, strings.Split(*files, ","))
	if err != nil {
		log.Fatalf("assemble media: %v", err)
	}

	coord := geo.Coordinate{Latitude: *lat, Longitude: *lng}
	meta := report.Metadata{
		FormType:  report.LookupFormType(*formType).Key,
		Notes:     *notes,
		MoodNotes: *mood,
		Date:      *date,
	}

	co := submit.NewCoordinator(backend, backend, nil, logPresenter{})
	co.SetHighlightWindow(cfg.HighlightWindow)
	defer co.Teardown()

	id, err := co.Submit(ctx, meta, coll, coord)
	if err != nil {
		if errors.Is(err, submit.ErrNoCoordinate) {
			log.Fatalf("submit: a valid -lat/-lng pair is required: %v", err)
		}
		log.Fatalf("submit: %v", err)
	}
	log.Printf("report %s created", id)
}

// backend is the union of the two consumed server operations; both
// implementations satisfy it.
type backend interface {
	submit.Uploader
	submit.Fetcher
}

func buildBackend(cfg *config.Config) (backend, error) {
	if cfg.Backend == config.BackendObjectStore {
		return objectstore.New(objectstore.Config{
			Endpoint:  cfg.Store.Endpoint,
			Region:    cfg.Store.Region,
			AccessKey: cfg.Store.AccessKey,
			SecretKey: cfg.Store.SecretKey,
			Bucket:    cfg.Store.Bucket,
			UseSSL:    cfg.Store.UseSSL,
		})
	}
	return httpapi.NewClient(cfg.APIBaseURL, &http.Client{Timeout: 30 * time.Second})
}

// buildCollection reads each picked file, runs it through the artifact
// builder, and adds it to a capped, de-duplicating collection.
func buildCollection(cfg *config.Config, paths []string) (*gallery.Collection, error) {
	coll := gallery.NewCollection(gallery.NewRegistry(), gallery.Limits{
		MaxImages: cfg.MaxImages,
		MaxVideos: cfg.MaxVideos,
	})

	fs, err := mediafs.New(cfg.MediaRoot)
	if err != nil {
		return nil, err
	}
	builder := artifact.NewBuilder(encoding.NewNegotiator(encoding.FullSupport()))

	for _, p := range paths {
		p = strings.TrimSpace(p)
		if p == "" {
			continue
		}
		picked, err := fs.Read(p)
		if err != nil {
			return nil, fmt.Errorf("%s: %w", p, err)
		}
		kind, ok := artifact.KindForMIME(picked.MIME)
		if !ok {
			return nil, fmt.Errorf("%s: %w", p, artifact.ErrUnsupportedFormat)
		}
		a, err := builder.FromPickedFile(picked.Name, picked.MIME, picked.Data, kind)
		if err != nil {
			return nil, fmt.Errorf("%s: %w", p, err)
		}
		res, err := coll.Add(a)
		if err != nil {
			return nil, fmt.Errorf("%s: %w", p, err)
		}
		if res != gallery.Added {
			log.Printf("skipping %s: %s", p, res)
		}
	}
	return coll, nil
}

// logPresenter prints protocol transitions; a UI host would update its view
// instead.
type logPresenter struct{}

func (logPresenter) PendingShown(m submit.PendingMarker) {
	log.Printf("pending marker shown at %s (saving)", m.Coordinate)
}

func (logPresenter) PendingUpdated(m submit.PendingMarker) {
	log.Printf("pending marker committed at %s", m.Coordinate)
}

func (logPresenter) PendingCleared() {
	log.Printf("pending marker cleared")
}

func (logPresenter) ReportsRefreshed(reports []report.Report) {
	log.Printf("report list refreshed: %d records", len(reports))
}

func (logPresenter) HighlightSet(id string)     { log.Printf("highlighting report %s", id) }
func (logPresenter) HighlightCleared(id string) { log.Printf("highlight expired for %s", id) }

package reports

import (
	"bytes"
	"context"
	"encoding/csv"
	"fmt"
	"io"
	"log/slog"
	"strconv"
	"time"

	"github.com/tripdesk/apiserver/types"
)

const contentType = "text/csv"

var header = []string{
	"id",
	"status",
	"traveler_id",
	"traveler_name",
	"owner_email",
	"destination",
	"departure_datetime",
	"return_datetime",
	"description",
	"created_at",
}

// TripRequestLister lists trip requests as seen by an actor.
type TripRequestLister interface {
	List(ctx context.Context, actor types.Actor, filter types.TripRequestFilter) ([]types.TripRequest, int, error)
}

// ObjectWriter writes an object to the export bucket.
type ObjectWriter interface {
	Put(ctx context.Context, key string, r io.Reader, size int64, contentType string) error
}

// Exporter writes CSV snapshots of trip requests to object storage.
type Exporter struct {
	trips  TripRequestLister
	bucket ObjectWriter
	logger *slog.Logger
	now    func() time.Time
}

// Result describes a finished export.
type Result struct {
	Key  string
	Rows int
	Size int
}

func NewExporter(trips TripRequestLister, bucket ObjectWriter, logger *slog.Logger) *Exporter {
	return &Exporter{trips: trips, bucket: bucket, logger: logger, now: time.Now}
}

// Export snapshots every trip request matching filter. The listing runs with
// admin scope and ignores paging.
func (e *Exporter) Export(ctx context.Context, filter types.TripRequestFilter) (Result, error) {
	filter.Page = types.Page{All: true}
	trips, _, err := e.trips.List(ctx, types.Actor{IsAdmin: true}, filter)
	if err != nil {
		return Result{}, fmt.Errorf("list trip requests: %w", err)
	}

	var buf bytes.Buffer
	if err := WriteCSV(&buf, trips); err != nil {
		return Result{}, err
	}

	key := fmt.Sprintf("exports/trip-requests-%s.csv", e.now().UTC().Format("20060102T150405Z"))
	size := buf.Len()
	if err := e.bucket.Put(ctx, key, &buf, int64(size), contentType); err != nil {
		return Result{}, fmt.Errorf("upload %s: %w", key, err)
	}

	e.logger.InfoContext(ctx, "trip requests exported", "key", key, "rows", len(trips), "bytes", size)
	return Result{Key: key, Rows: len(trips), Size: size}, nil
}

// WriteCSV renders trips with a header row.
func WriteCSV(w io.Writer, trips []types.TripRequest) error {
	cw := csv.NewWriter(w)
	if err := cw.Write(header); err != nil {
		return err
	}
	for _, tr := range trips {
		if err := cw.Write(record(tr)); err != nil {
			return err
		}
	}
	cw.Flush()
	return cw.Error()
}

func record(tr types.TripRequest) []string {
	var travelerName, ownerEmail, destination string
	if tr.Traveler != nil {
		travelerName = tr.Traveler.Name
		if tr.Traveler.User != nil {
			ownerEmail = tr.Traveler.User.Email
		}
	}
	if tr.Destination != nil {
		destination = tr.Destination.FullLocation()
	}
	return []string{
		strconv.Itoa(tr.ID),
		string(tr.Status),
		strconv.Itoa(tr.TravelerID),
		travelerName,
		ownerEmail,
		destination,
		tr.DepartureAt.UTC().Format(time.RFC3339),
		tr.ReturnAt.UTC().Format(time.RFC3339),
		tr.Description,
		tr.CreatedAt.UTC().Format(time.RFC3339),
	}
}

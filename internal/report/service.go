package report

import (
	"context"
	"fmt"
	"io"
	"time"

	"bandroom/internal/model"
)

// Store is the read surface the exporter needs.
type Store interface {
	ListActiveRooms(ctx context.Context) ([]model.Room, error)
	ListReservations(ctx context.Context, roomID int64, from, to time.Time) ([]model.Reservation, error)
	ListProductions(ctx context.Context, roomID int64, from, to time.Time) ([]model.Production, error)
	ListClosures(ctx context.Context, roomID int64, from, to time.Time) ([]model.SpaceClosure, error)
	GetSeries(ctx context.Context, id int64) (*model.RecurringSeries, error)
	ListSeriesInstances(ctx context.Context, seriesID int64) ([]model.Reservation, error)
}

// Exporter builds XLSX reports over the store.
type Exporter struct {
	store  Store
	writer func() SheetWriter
}

// NewExporter creates an exporter. writerFactory yields a fresh
// workbook per export.
func NewExporter(store Store, writerFactory func() SheetWriter) *Exporter {
	return &Exporter{store: store, writer: writerFactory}
}

// ExportOccupancy writes one sheet per active room listing
// reservations and productions within the window.
func (e *Exporter) ExportOccupancy(ctx context.Context, from, to time.Time, out io.Writer) error {
	rooms, err := e.store.ListActiveRooms(ctx)
	if err != nil {
		return fmt.Errorf("list rooms: %w", err)
	}

	w := e.writer()
	defer w.Close()

	for _, room := range rooms {
		if err := w.AddSheet(room.Name); err != nil {
			return err
		}
		if err := w.WriteHeader([]string{"Start", "End", "Kind", "Band", "Status", "Comment"}); err != nil {
			return err
		}

		reservations, err := e.store.ListReservations(ctx, room.ID, from, to)
		if err != nil {
			return fmt.Errorf("list reservations for room %d: %w", room.ID, err)
		}
		for _, r := range reservations {
			row := []interface{}{
				r.StartTime.Format("2006-01-02 15:04"),
				r.EndTime.Format("2006-01-02 15:04"),
				"reservation",
				r.BandID,
				r.Status,
				r.Comment,
			}
			if err := w.WriteRow(row); err != nil {
				return err
			}
		}

		productions, err := e.store.ListProductions(ctx, room.ID, from, to)
		if err != nil {
			return fmt.Errorf("list productions for room %d: %w", room.ID, err)
		}
		for _, p := range productions {
			row := []interface{}{
				p.StartTime.Format("2006-01-02 15:04"),
				p.EndTime.Format("2006-01-02 15:04"),
				"production",
				p.Title,
				p.Status,
				"",
			}
			if err := w.WriteRow(row); err != nil {
				return err
			}
		}

		closures, err := e.store.ListClosures(ctx, room.ID, from, to)
		if err != nil {
			return fmt.Errorf("list closures for room %d: %w", room.ID, err)
		}
		for _, c := range closures {
			row := []interface{}{
				c.StartTime.Format("2006-01-02 15:04"),
				c.EndTime.Format("2006-01-02 15:04"),
				"closure",
				c.Kind,
				"",
				c.Label,
			}
			if err := w.WriteRow(row); err != nil {
				return err
			}
		}
	}

	return w.Save(out)
}

// ExportSeriesHistory writes the full instance history of one series,
// placeholders included, so skipped dates stay auditable.
func (e *Exporter) ExportSeriesHistory(ctx context.Context, seriesID int64, out io.Writer) error {
	s, err := e.store.GetSeries(ctx, seriesID)
	if err != nil {
		return fmt.Errorf("load series %d: %w", seriesID, err)
	}
	instances, err := e.store.ListSeriesInstances(ctx, seriesID)
	if err != nil {
		return fmt.Errorf("list instances of series %d: %w", seriesID, err)
	}

	w := e.writer()
	defer w.Close()

	if err := w.AddSheet(fmt.Sprintf("Series %d", s.ID)); err != nil {
		return err
	}
	if err := w.WriteHeader([]string{"Date", "Start", "End", "Materialized", "Status", "Comment"}); err != nil {
		return err
	}
	for _, inst := range instances {
		date := ""
		if inst.OccurrenceDate != nil {
			date = inst.OccurrenceDate.Format("2006-01-02")
		}
		row := []interface{}{
			date,
			inst.StartTime.Format("15:04"),
			inst.EndTime.Format("15:04"),
			inst.Materialized(),
			inst.Status,
			inst.Comment,
		}
		if err := w.WriteRow(row); err != nil {
			return err
		}
	}

	return w.Save(out)
}

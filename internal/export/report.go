package export

import (
	"fmt"
	"io"
	"sort"

	"reasy/internal/booking"
	"reasy/internal/model"
)

// ContentType is the MIME type of the produced workbook.
const ContentType = "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"

var reservationColumns = []string{"ID", "Created", "Date", "Start", "End", "Client", "Status"}

// Reservations writes a workbook with one row per reservation, newest slot
// first, and a summary sheet with counts per status.
func Reservations(out io.Writer, businessName string, views []booking.ReservationView) error {
	w := newSheetWriter()
	defer w.close()

	rows := append([]booking.ReservationView(nil), views...)
	sort.SliceStable(rows, func(i, j int) bool {
		if rows[i].SlotDate != rows[j].SlotDate {
			return rows[i].SlotDate > rows[j].SlotDate
		}
		return rows[i].StartTime < rows[j].StartTime
	})

	if err := w.addSheet("Reservations"); err != nil {
		return err
	}
	if err := w.writeHeader(reservationColumns); err != nil {
		return err
	}
	counts := make(map[model.ReservationStatus]int)
	for _, v := range rows {
		counts[v.Status]++
		if err := w.writeRow([]any{v.ID, v.CreatedAt, v.SlotDate, v.StartTime, v.EndTime, v.ClientName, string(v.Status)}); err != nil {
			return fmt.Errorf("write reservation %d: %w", v.ID, err)
		}
	}

	if err := w.addSheet("Summary"); err != nil {
		return err
	}
	if err := w.writeRow([]any{"Business", businessName}); err != nil {
		return err
	}
	if err := w.writeHeader([]string{"Status", "Count"}); err != nil {
		return err
	}
	for _, s := range []model.ReservationStatus{model.ReservationPending, model.ReservationAccepted, model.ReservationDeclined} {
		if err := w.writeRow([]any{string(s), counts[s]}); err != nil {
			return err
		}
	}
	if err := w.writeRow([]any{"total", len(rows)}); err != nil {
		return err
	}

	return w.save(out)
}

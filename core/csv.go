package core

import (
	"encoding/csv"
	"fmt"
	"io"
	"os"
	"slices"
	"strconv"
	"time"

	"github.com/pkg/errors"
)

// Header is the fixed column set every snapshot file starts with.
var Header = []string{"id", "product_name", "category", "price", "last_update_date"}

const dateLayout = "2006-01-02"

// SnapshotFilename names the file for generation gen, counting from 1.
func SnapshotFilename(gen int) string {
	return fmt.Sprintf("test_data_file%d.csv", gen)
}

// WriteSnapshot serializes snap as comma-delimited text: the fixed header,
// then one row per record. Prices carry exactly two fraction digits and
// dates are ISO 8601 calendar dates.
func WriteSnapshot(w io.Writer, snap Snapshot) error {
	cw := csv.NewWriter(w)
	if err := cw.Write(Header); err != nil {
		return errors.Wrap(err, "write header")
	}
	for _, rec := range snap {
		row := []string{
			rec.ID,
			rec.Name,
			rec.Category,
			strconv.FormatFloat(rec.Price, 'f', 2, 64),
			rec.LastUpdate.Format(dateLayout),
		}
		if err := cw.Write(row); err != nil {
			return errors.Wrapf(err, "write record %s", rec.ID)
		}
	}
	cw.Flush()
	return errors.Wrap(cw.Error(), "flush snapshot")
}

// WriteSnapshotFile writes snap to path, replacing any existing file.
func WriteSnapshotFile(path string, snap Snapshot) error {
	f, err := os.Create(path)
	if err != nil {
		return errors.Wrap(err, "create snapshot file")
	}
	if err := WriteSnapshot(f, snap); err != nil {
		f.Close()
		return err
	}
	return errors.Wrap(f.Close(), "close snapshot file")
}

// ReadSnapshot parses the format WriteSnapshot emits. The header row must
// match Header exactly; the csv reader enforces the field count on every row
// after it.
func ReadSnapshot(r io.Reader) (Snapshot, error) {
	cr := csv.NewReader(r)
	header, err := cr.Read()
	if err != nil {
		return nil, errors.Wrap(err, "read header")
	}
	if !slices.Equal(header, Header) {
		return nil, errors.Errorf("unexpected header %v", header)
	}

	snap := Snapshot{}
	for line := 2; ; line++ {
		row, err := cr.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, errors.Wrapf(err, "line %d", line)
		}
		price, err := strconv.ParseFloat(row[3], 64)
		if err != nil {
			return nil, errors.Wrapf(err, "line %d: price", line)
		}
		updated, err := time.Parse(dateLayout, row[4])
		if err != nil {
			return nil, errors.Wrapf(err, "line %d: last update date", line)
		}
		snap = append(snap, Record{
			ID:         row[0],
			Name:       row[1],
			Category:   row[2],
			Price:      price,
			LastUpdate: updated,
		})
	}
	return snap, nil
}

// ReadSnapshotFile reads the snapshot stored at path.
func ReadSnapshotFile(path string) (Snapshot, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, errors.Wrap(err, "open snapshot file")
	}
	defer f.Close()
	return ReadSnapshot(f)
}

package tabular

import (
	"encoding/csv"
	"io"
	"strconv"

	"github.com/MohamedAzimStelco/outage-dashboard/internal/domain"
)

// ExportHeader is the canonical column order of the station export.
var ExportHeader = []string{"id", "feeder", "name", "consumers", "isOut"}

// WriteCSV serializes stations in the canonical export format. The output
// imports back to the same stations.
func WriteCSV(w io.Writer, stations []domain.Station) error {
	cw := csv.NewWriter(w)

	if err := cw.Write(ExportHeader); err != nil {
		return err
	}
	for _, s := range stations {
		row := []string{
			s.ID,
			s.Feeder,
			s.Name,
			strconv.Itoa(s.Consumers),
			strconv.FormatBool(s.IsOut),
		}
		if err := cw.Write(row); err != nil {
			return err
		}
	}

	cw.Flush()
	return cw.Error()
}

package scenario

import (
	"fmt"
	"io"
	"text/tabwriter"

	"gopkg.in/yaml.v3"

	"github.com/iliyamo/seat-allotment/internal/model"
)

// WriteYAML encodes the report as a YAML document.
func (r *Report) WriteYAML(w io.Writer) error {
	enc := yaml.NewEncoder(w)
	enc.SetIndent(2)
	if err := enc.Encode(r); err != nil {
		return err
	}
	return enc.Close()
}

// WriteText prints one table per round followed by the final inventory.
func (r *Report) WriteText(w io.Writer) error {
	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	for _, rr := range r.Rounds {
		fmt.Fprintf(tw, "Round %d: %d processed, %d allotted, %d upgraded\n",
			rr.Number, rr.Processed, len(rr.Allotments), len(rr.Upgraded))
		if len(rr.Allotments) > 0 {
			fmt.Fprintln(tw, "  ID\tAPPLICANT\tRANK\tCATEGORY\tCOURSE\tSTATUS")
			for _, l := range rr.Allotments {
				fmt.Fprintf(tw, "  %d\t%s\t%d\t%s\t%s\t%s\n", l.AllotmentID, l.Applicant, l.Rank, l.Category, l.Course, l.Status)
			}
		}
		for _, l := range rr.Upgraded {
			fmt.Fprintf(tw, "  upgraded: %s left %s (allotment %d)\n", l.Applicant, l.Course, l.AllotmentID)
		}
		for _, sk := range rr.Skipped {
			fmt.Fprintf(tw, "  skipped: %s (%s)\n", sk.Applicant, sk.Reason)
		}
		fmt.Fprintln(tw)
	}

	fmt.Fprintln(tw, "COURSE\tTOTAL\tAVAILABLE\tGENERAL\tOBC\tSC\tST\tEWS")
	for _, c := range r.Courses {
		fmt.Fprintf(tw, "%s\t%d\t%d", c.Course, c.Total, c.Available)
		for _, cat := range model.Categories() {
			fmt.Fprintf(tw, "\t%d", c.ByQuota[cat])
		}
		fmt.Fprintln(tw)
	}
	return tw.Flush()
}

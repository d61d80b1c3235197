// Package course prints the geometry of a race course.
package course

import (
	"fmt"
	"io"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/mpapenbr/pylonrace-go/pkg/config"
	crs "github.com/mpapenbr/pylonrace-go/pkg/course"
)

func NewCourseCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "course",
		Short: "prints leg distances, bearings and turn angles of a course",
		RunE: func(cmd *cobra.Command, args []string) error {
			c, err := crs.LoadFile(config.CourseFile)
			if err != nil {
				return err
			}
			return PrintGeometry(cmd.OutOrStdout(), c)
		},
	}
	cmd.Flags().StringVar(&config.CourseFile,
		"course",
		"",
		"course definition (yaml), default is the built-in course")
	return cmd
}

// PrintGeometry writes one row per waypoint and the total course length.
func PrintGeometry(w io.Writer, c *crs.Course) error {
	if _, err := fmt.Fprintf(w, "course %s\n\n", c.Name()); err != nil {
		return err
	}
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', tabwriter.AlignRight)
	fmt.Fprintln(tw, "WAYPOINT\tIN (m)\tIN (deg)\tOUT (m)\tOUT (deg)\tTURN (deg)\t")
	for _, leg := range c.Legs() {
		fmt.Fprintf(tw, "%s\t%.1f\t%.1f\t%.1f\t%.1f\t%.1f\t\n",
			leg.Name,
			leg.InboundDist, leg.InboundBearing,
			leg.OutboundDist, leg.OutboundBearing,
			leg.TurnAngle)
	}
	if err := tw.Flush(); err != nil {
		return err
	}
	_, err := fmt.Fprintf(w, "\nlap length %.1f m\n", c.Length())
	return err
}

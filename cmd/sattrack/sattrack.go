package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/banshee-data/sattrack/internal/catalog"
	"github.com/banshee-data/sattrack/internal/config"
	"github.com/banshee-data/sattrack/internal/db"
	"github.com/banshee-data/sattrack/internal/ephemeris"
	"github.com/banshee-data/sattrack/internal/mount"
	"github.com/banshee-data/sattrack/internal/report"
	"github.com/banshee-data/sattrack/internal/timeutil"
	"github.com/banshee-data/sattrack/internal/track"
	"github.com/banshee-data/sattrack/internal/trajectory"
	"github.com/banshee-data/sattrack/internal/version"
)

var (
	stationPath = flag.String("config", config.DefaultStationPath, "Station configuration file")
	devMode     = flag.Bool("dev", false, "Use the simulated mount instead of the serial port")
	setLocation = flag.Bool("set-location", false, "Push the station location to the hand control before tracking")
	setTime     = flag.Bool("set-time", false, "Push the current time to the hand control before tracking")
	cacheDir    = flag.String("cache", "cache", "TLE cache directory")
	dbFile      = flag.String("db", "sattrack.db", "Session database file")
	outDir      = flag.String("out", "plots", "Output directory for trajectory plots")
	groups      = flag.String("groups", "stations,visual", "Comma-separated Celestrak groups to search")
	showVersion = flag.Bool("version", false, "Print version and exit")
)

func usage() {
	fmt.Fprintf(flag.CommandLine.Output(), "usage: sattrack [flags] <pass-config.json> <execute|dryrun|trajectory>\n\n")
	flag.PrintDefaults()
	os.Exit(2)
}

func main() {
	flag.Usage = usage
	flag.Parse()
	if *showVersion {
		fmt.Printf("sattrack %s (%s, built %s)\n", version.Version, version.GitSHA, version.BuildTime)
		return
	}
	if flag.NArg() != 2 {
		usage()
	}
	passPath, command := flag.Arg(0), flag.Arg(1)
	switch command {
	case "execute", "dryrun", "trajectory":
	default:
		log.Fatalf("unknown command %q", command)
	}

	station, err := config.LoadStation(*stationPath)
	if err != nil {
		log.Fatalf("load station config: %v", err)
	}
	pass, err := config.LoadPass(passPath)
	if err != nil {
		log.Fatalf("load pass config: %v", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	traj, err := buildTrajectory(ctx, station, pass)
	if err != nil {
		log.Fatalf("build trajectory: %v", err)
	}
	log.Printf("trajectory for %s covers %.0fs including %.0fs pad on each end",
		pass.Satellite, traj.Duration(), pass.Trajectory.PadSeconds)

	if command == "trajectory" {
		if err := report.TrajectoryPlots(traj, pass.Satellite, *outDir); err != nil {
			log.Fatalf("render trajectory plots: %v", err)
		}
		log.Printf("wrote trajectory plots to %s", *outDir)
		return
	}

	var driver mount.Driver
	if *devMode {
		sim := mount.NewSimulator(timeutil.RealClock{})
		driver = sim
		log.Print("dev mode: tracking against the simulated mount")
	} else {
		hc, err := mount.Open(station.Telescope.Port)
		if err != nil {
			log.Fatalf("open mount on %s: %v", station.Telescope.Port, err)
		}
		defer hc.Close()

		if *setLocation {
			if err := hc.SetLocation(station.Location.Latitude, station.Location.Longitude); err != nil {
				log.Fatalf("set hand control location: %v", err)
			}
			log.Print("pushed station location to the hand control")
		}
		if *setTime {
			if err := hc.SetTime(time.Now().In(station.TZ())); err != nil {
				log.Fatalf("set hand control time: %v", err)
			}
			log.Print("pushed current time to the hand control")
		}
		driver = hc
	}

	tracker := &track.Tracker{
		Driver:    driver,
		Clock:     timeutil.RealClock{},
		Config:    track.Config{Pad: pass.Pad(), Period: pass.Period(), PrerollTimeout: prerollTimeout(pass)},
		Satellite: pass.Satellite,
	}

	session, runErr := tracker.Run(ctx, traj, pass.Start, command == "dryrun")
	if session != nil {
		if err := persistSession(session); err != nil {
			log.Printf("persist session: %v", err)
		}
	}
	if runErr != nil {
		log.Fatalf("tracking failed: %v", runErr)
	}
}

// buildTrajectory runs the offline pipeline: catalog lookup, ephemeris
// sampling, feasibility check, padding, polynomial fit. It touches no
// hardware.
func buildTrajectory(ctx context.Context, station *config.Station, pass *config.Pass) (*trajectory.Trajectory, error) {
	loader := &catalog.Loader{CacheDir: *cacheDir}
	tle, err := loader.Find(ctx, pass.Satellite, strings.Split(*groups, ",")...)
	if err != nil {
		return nil, err
	}

	provider, err := ephemeris.NewProvider(tle.Line1, tle.Line2, ephemeris.Observer{
		Latitude:  station.Location.Latitude,
		Longitude: station.Location.Longitude,
		AltitudeM: station.Location.AltitudeM,
	})
	if err != nil {
		return nil, err
	}

	step := time.Duration(pass.Trajectory.StepSeconds) * time.Second
	samples, err := provider.Samples(pass.Start, pass.Duration(), step)
	if err != nil {
		return nil, err
	}

	series, err := trajectory.NewSeries(samples)
	if err != nil {
		return nil, err
	}
	if err := series.CheckSlewRates(station.Telescope.MaxSlewRate); err != nil {
		return nil, err
	}
	padded, err := series.Pad(pass.Trajectory.PadSeconds, pass.Trajectory.OffsetMultiplier)
	if err != nil {
		return nil, err
	}
	return trajectory.NewMinimumSnap(padded)
}

func prerollTimeout(pass *config.Pass) time.Duration {
	return time.Duration(pass.PrerollTimeoutSeconds * float64(time.Second))
}

// persistSession records the session in sqlite and renders its error chart
// next to the trajectory plots.
func persistSession(session *track.Session) error {
	sdb, err := db.NewDB(*dbFile)
	if err != nil {
		return fmt.Errorf("open session database: %w", err)
	}
	defer sdb.Close()

	if err := sdb.RecordSession(session); err != nil {
		return fmt.Errorf("record session: %w", err)
	}
	log.Printf("recorded session %s (%d loops, %d error samples)", session.ID, session.Loops, len(session.Errors))

	if len(session.Errors) > 0 {
		if err := os.MkdirAll(*outDir, 0o755); err != nil {
			return err
		}
		chart := fmt.Sprintf("%s/session_%s.html", *outDir, session.ID)
		if err := report.SessionChart(session, chart); err != nil {
			return err
		}
		log.Printf("wrote pointing error chart to %s", chart)
	}
	return nil
}

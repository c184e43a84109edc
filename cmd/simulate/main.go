package main

import (
	"encoding/json"
	"flag"
	"fmt"
	"log"
	"net"
	"time"

	"github.com/banshee-data/prediction.report/internal/perception"
)

func main() {
	out := flag.String("out", "", "Write batches to a replay log at this path")
	udp := flag.String("udp", "", "Send batches as UDP datagrams to this address (e.g. localhost:9048)")
	key := flag.String("key", "", "Object key (random UUID when empty)")
	class := flag.String("class", "car", "Object class label")
	pattern := flag.String("pattern", "straight", "Deviation pattern: straight, offset, spike or oscillation")
	deviation := flag.Float64("deviation", 1.0, "Lateral deviation magnitude in meters")
	duration := flag.Duration("duration", 30*time.Second, "Total scenario duration")
	step := flag.Duration("step", 500*time.Millisecond, "Batch interval and predicted path sampling step")
	velocity := flag.Float64("velocity", 2.0, "Velocity along +X in m/s")
	horizon := flag.Duration("horizon", 10*time.Second, "Predicted path length")
	spikeAt := flag.Duration("spike-at", -1, "Elapsed time of the spike or oscillation gap (negative disables)")
	pace := flag.Bool("pace", false, "Pace UDP batches at the step interval instead of sending all at once")
	flag.Parse()

	if (*out == "") == (*udp == "") {
		log.Fatal("exactly one of -out or -udp is required")
	}

	parsed, err := perception.ParsePattern(*pattern)
	if err != nil {
		log.Fatalf("invalid pattern: %v", err)
	}

	scenario := perception.DefaultScenario()
	scenario.Class = perception.ObjectClass(*class)
	scenario.Velocity = *velocity
	scenario.TimeStep = *step
	scenario.Horizon = *horizon
	scenario.Deviation = *deviation
	scenario.Pattern = parsed
	scenario.SpikeAt = *spikeAt
	if *key != "" {
		scenario.Key = perception.ObjectKey(*key)
	}
	if err := scenario.Validate(); err != nil {
		log.Fatalf("invalid scenario: %v", err)
	}

	batches := scenario.Batches(*duration)

	if *out != "" {
		writer, err := perception.CreateLog(*out)
		if err != nil {
			log.Fatalf("create replay log: %v", err)
		}
		for _, batch := range batches {
			if err := writer.Append(batch); err != nil {
				log.Fatalf("append batch: %v", err)
			}
		}
		if err := writer.Close(); err != nil {
			log.Fatalf("close replay log: %v", err)
		}
		fmt.Printf("wrote %d batches (%s, %s pattern, %.1fs) to %s\n",
			len(batches), scenario.Class, scenario.Pattern, duration.Seconds(), *out)
		return
	}

	conn, err := net.Dial("udp", *udp)
	if err != nil {
		log.Fatalf("dial udp: %v", err)
	}
	defer conn.Close()

	for i, batch := range batches {
		data, err := json.Marshal(batch)
		if err != nil {
			log.Fatalf("encode batch: %v", err)
		}
		if _, err := conn.Write(data); err != nil {
			log.Fatalf("send batch: %v", err)
		}
		if *pace && i < len(batches)-1 {
			time.Sleep(*step)
		}
	}
	fmt.Printf("sent %d batches (%s, %s pattern, %.1fs) to %s\n",
		len(batches), scenario.Class, scenario.Pattern, duration.Seconds(), *udp)
}

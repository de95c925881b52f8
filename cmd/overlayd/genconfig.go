package main

import (
	"fmt"

	"github.com/brianvoe/gofakeit"
	"github.com/spf13/cobra"
)

func init() {
	genconfigCmd.Flags().Bool("random", false, "fill in a fully randomized config instead of a commented skeleton, for local multi-node testing")
	genconfigCmd.Flags().Int("neighbors", 2, "number of neighbor lines to generate with --random")
	rootCmd.AddCommand(genconfigCmd)
}

var genconfigCmd = &cobra.Command{
	Use:  "genconfig",
	RunE: genconfig,
}

func genconfig(cmd *cobra.Command, args []string) error {
	random, err := cmd.Flags().GetBool("random")
	if err != nil {
		return err
	}
	if random {
		n, err := cmd.Flags().GetInt("neighbors")
		if err != nil {
			return err
		}
		fmt.Print(randomConfig(n))
		return nil
	}

	fmt.Print(skeletonConfig)
	return nil
}

const skeletonConfig = `# overlayd config: one "key: value" per line, blank lines and '#' ignored.
# hostIp: this router's substrate-layer (UDP) bind address.
hostIp: 127.0.0.1

# myIp: this router's overlay address.
myIp: 1.1.0.1

# prefix: repeatable; local prefixes this router originates ADVERTs for.
prefix: 1.1.0.0/16

# neighbor: repeatable; "<overlayIp> <hostIp> <delay seconds>". hostIp is a
# bare address: the substrate always listens on the fixed overlay port, so
# two nodes sharing a host need distinct loopback addresses, not ports.
# Line order defines the stable link index used by the forwarder and router.
# neighbor: 1.1.0.2 127.0.0.2 0.05

# destination: repeatable; consumed only by the traffic generator.
# destination: 1.1.0.2
`

// randomConfig generates a config for a single node of an n-neighbor mesh,
// for local multi-node testing. The substrate always binds the fixed
// overlay port on whatever hostIp it's given, so nodes sharing a machine
// are told apart by loopback address, not port: this node and each of its
// neighbors gets its own 127.0.0.x address.
func randomConfig(neighborCount int) string {
	ownHost := gofakeit.Number(2, 253)

	out := fmt.Sprintf("hostIp: 127.0.0.%d\n", ownHost)
	out += fmt.Sprintf("myIp: 10.%d.%d.%d\n", gofakeit.Number(1, 254), gofakeit.Number(1, 254), gofakeit.Number(1, 254))
	out += fmt.Sprintf("prefix: 10.%d.0.0/16\n", gofakeit.Number(1, 254))

	for i := 0; i < neighborCount; i++ {
		overlayIP := fmt.Sprintf("10.%d.%d.%d", gofakeit.Number(1, 254), gofakeit.Number(1, 254), gofakeit.Number(1, 254))
		neighborHost := ownHost + i + 1
		delay := float64(gofakeit.Number(1, 50)) / 1000
		out += fmt.Sprintf("neighbor: %s 127.0.0.%d %.3f\n", overlayIP, neighborHost%254+1, delay)
	}

	return out
}

package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/gpurig/rig/internal/vast"
)

var (
	offersQuery string
	offersOrder string
	offersLimit int
)

var offersCmd = &cobra.Command{
	Use:   "offers",
	Short: "Search rentable GPU offers",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		client, err := newProviderClient()
		if err != nil {
			return err
		}
		offers, err := client.SearchOffers(cmd.Context(), vast.OfferQuery{
			Query: offersQuery,
			Order: offersOrder,
			Limit: offersLimit,
		})
		if err != nil {
			return err
		}

		if flagJSON {
			return printJSON(offers)
		}
		if len(offers) == 0 {
			fmt.Println("No offers found matching your criteria.")
			return nil
		}
		for _, o := range offers {
			fmt.Printf("%d  %dx %-18s $%.4f/hr  %-16s %.1f%% reliable  ↓%.0f ↑%.0f Mbps\n",
				o.ID, o.NumGPUs, o.GPUName, o.CostPerHour, o.Geolocation, o.Reliability, o.InetDown, o.InetUp)
		}
		return nil
	},
}

var (
	volumesQuery string
	volumesLimit int
)

var volumesCmd = &cobra.Command{
	Use:   "volumes",
	Short: "Search rentable storage volumes",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		client, err := newProviderClient()
		if err != nil {
			return err
		}
		volumes, err := client.SearchVolumes(cmd.Context(), volumesQuery, volumesLimit)
		if err != nil {
			return err
		}

		if flagJSON {
			return printJSON(volumes)
		}
		if len(volumes) == 0 {
			fmt.Println("No volume offers found matching your criteria.")
			return nil
		}
		for _, v := range volumes {
			fmt.Printf("%d  %.1f GB  $%.4f/GB/month  %-16s %.0f MB/s\n",
				v.ID, v.DiskSpace, v.StorageCost, v.Geolocation, v.DiskBW)
		}
		return nil
	},
}

var templatesCmd = &cobra.Command{
	Use:   "templates",
	Short: "List provider launch templates",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		client, err := newProviderClient()
		if err != nil {
			return err
		}
		templates, err := client.SearchTemplates(cmd.Context())
		if err != nil {
			return err
		}

		if flagJSON {
			return printJSON(templates)
		}
		for _, tpl := range templates {
			fmt.Printf("%d  %-24s %s\n", tpl.ID, tpl.Name, tpl.Image)
		}
		return nil
	},
}

var userCmd = &cobra.Command{
	Use:   "user",
	Short: "Show account information and balance",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		client, err := newProviderClient()
		if err != nil {
			return err
		}
		user, err := client.ShowUser(cmd.Context())
		if err != nil {
			return err
		}

		if flagJSON {
			return printJSON(user)
		}
		fmt.Printf("User:    %s (%d)\n", user.Username, user.ID)
		fmt.Printf("Email:   %s\n", user.Email)
		fmt.Printf("Balance: $%.2f\n", user.Credit)
		if user.TotalSpent > 0 {
			fmt.Printf("Spent:   $%.2f\n", user.TotalSpent)
		}
		return nil
	},
}

func init() {
	offersCmd.Flags().StringVar(&offersQuery, "query", "", "space-separated key=value filters")
	offersCmd.Flags().StringVar(&offersOrder, "order", "score-", "sort order, trailing - for descending")
	offersCmd.Flags().IntVar(&offersLimit, "limit", 20, "maximum results")

	volumesCmd.Flags().StringVar(&volumesQuery, "query", "", "space-separated key=value filters")
	volumesCmd.Flags().IntVar(&volumesLimit, "limit", 20, "maximum results")

	rootCmd.AddCommand(offersCmd, volumesCmd, templatesCmd, userCmd)
}

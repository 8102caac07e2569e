package main

import (
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"

	"wireviz-web/internal/plantuml"
)

var plantumlCmd = &cobra.Command{
	Use:   "plantuml",
	Short: "Encode and decode PlantUML URL text",
}

var encodeCmd = &cobra.Command{
	Use:   "encode [text]",
	Short: "Encode UML text into its URL form",
	Long:  `Encodes UML text into the deflate+base64 form used in PlantUML URLs. Reads stdin when no argument is given.`,
	Args:  cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		src, err := argOrStdin(args)
		if err != nil {
			return err
		}
		out, err := plantuml.Encode(src)
		if err != nil {
			return err
		}
		fmt.Println(out)
		return nil
	},
}

var decodeCmd = &cobra.Command{
	Use:   "decode [text]",
	Short: "Decode PlantUML URL text back into UML",
	Args:  cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		src, err := argOrStdin(args)
		if err != nil {
			return err
		}
		out, err := plantuml.Decode(src)
		if err != nil {
			return err
		}
		fmt.Println(out)
		return nil
	},
}

func init() {
	plantumlCmd.AddCommand(encodeCmd)
	plantumlCmd.AddCommand(decodeCmd)
	rootCmd.AddCommand(plantumlCmd)
}

func argOrStdin(args []string) (string, error) {
	if len(args) == 1 {
		return args[0], nil
	}
	raw, err := io.ReadAll(os.Stdin)
	if err != nil {
		return "", fmt.Errorf("read stdin: %w", err)
	}
	return string(raw), nil
}

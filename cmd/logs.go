package cmd

import (
	"errors"
	"fmt"
	"io/fs"
	"log"
	"os"
	"os/exec"
	"strconv"

	"github.com/jcdickinson/rsdocseek/internal/config"
	"github.com/spf13/cobra"
)

var logsCmd = &cobra.Command{
	Use:   "logs",
	Short: "Show the daemon log",
	Example: `  rsdocseek logs -n 200
  rsdocseek logs -f
  rsdocseek logs --clear`,
	Run: runLogs,
}

var (
	logsFollow bool
	logsLines  int
	logsClear  bool
)

func init() {
	logsCmd.Flags().BoolVarP(&logsFollow, "follow", "f", false, "keep printing new lines as they are written")
	logsCmd.Flags().IntVarP(&logsLines, "lines", "n", 50, "number of trailing lines to show")
	logsCmd.Flags().BoolVar(&logsClear, "clear", false, "truncate the log file")
}

func runLogs(cmd *cobra.Command, args []string) {
	logPath := config.LogPath()
	if _, err := os.Stat(logPath); errors.Is(err, fs.ErrNotExist) {
		fmt.Println("no daemon log yet:", logPath)
		return
	}

	if logsClear {
		if err := os.Truncate(logPath, 0); err != nil {
			log.Fatalf("truncating log: %v", err)
		}
		fmt.Println("daemon log cleared")
		return
	}

	tailArgs := []string{"-n", strconv.Itoa(logsLines)}
	if logsFollow {
		tailArgs = append(tailArgs, "-F")
	}
	tail := exec.Command("tail", append(tailArgs, logPath)...)
	tail.Stdout = os.Stdout
	tail.Stderr = os.Stderr
	if err := tail.Run(); err != nil {
		log.Fatalf("tail failed: %v", err)
	}
}

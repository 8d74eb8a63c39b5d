package main

import (
	"github.com/spf13/cobra"

	"rostov/internal/apptransfer"
	"rostov/rdt"
)

var (
	downloadServer  string
	downloadName    string
	downloadDest    string
	downloadConfig  string
	downloadVariant string
)

var downloadCmd = &cobra.Command{
	Use:   "download",
	Short: "connect to a server and download a file",
	RunE:  runDownload,
}

func init() {
	downloadCmd.Flags().StringVar(&downloadServer, "server", "127.0.0.1:57121", "server address")
	downloadCmd.Flags().StringVar(&downloadName, "name", "", "remote filename to request")
	downloadCmd.Flags().StringVar(&downloadDest, "dest", ".", "local directory to write the file into")
	downloadCmd.Flags().StringVar(&downloadConfig, "config", "", "optional YAML config file (rdtconf.Conf)")
	downloadCmd.Flags().StringVar(&downloadVariant, "variant", "", "reliability variant override: saw or sr")
	downloadCmd.MarkFlagRequired("name")
}

func runDownload(cmd *cobra.Command, args []string) error {
	conf, err := loadConf(downloadConfig, downloadVariant)
	if err != nil {
		return err
	}

	conn, err := rdt.Connect(downloadServer, conf)
	if err != nil {
		return err
	}
	defer conn.Close()

	if err := apptransfer.Download(conn, downloadName, downloadDest); err != nil {
		return err
	}
	log.Infof("downloaded %s to %s", downloadName, downloadDest)
	return nil
}

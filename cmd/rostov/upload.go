package main

import (
	"github.com/spf13/cobra"

	"rostov/internal/apptransfer"
	"rostov/rdt"
)

var (
	uploadServer  string
	uploadFile    string
	uploadConfig  string
	uploadVariant string
)

var uploadCmd = &cobra.Command{
	Use:   "upload",
	Short: "connect to a server and upload a file",
	RunE:  runUpload,
}

func init() {
	uploadCmd.Flags().StringVar(&uploadServer, "server", "127.0.0.1:57121", "server address")
	uploadCmd.Flags().StringVar(&uploadFile, "file", "", "path to the file to upload")
	uploadCmd.Flags().StringVar(&uploadConfig, "config", "", "optional YAML config file (rdtconf.Conf)")
	uploadCmd.Flags().StringVar(&uploadVariant, "variant", "", "reliability variant override: saw or sr")
	uploadCmd.MarkFlagRequired("file")
}

func runUpload(cmd *cobra.Command, args []string) error {
	conf, err := loadConf(uploadConfig, uploadVariant)
	if err != nil {
		return err
	}

	conn, err := rdt.Connect(uploadServer, conf)
	if err != nil {
		return err
	}
	defer conn.Close()

	if err := apptransfer.Upload(conn, uploadFile); err != nil {
		return err
	}
	log.Infof("uploaded %s", uploadFile)
	return nil
}

package main

import (
	"context"
	"io/fs"
	"mime"
	"os"
	"path"
	"path/filepath"

	"github.com/samber/oops"
	"github.com/spf13/cobra"

	"github.com/ayush/secrets-app/backend/internal/config"
)

// uploader stores one object.
type uploader interface {
	Upload(ctx context.Context, key string, data []byte, contentType string) error
}

// NewAssetsCmd creates the assets subcommand.
func NewAssetsCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "assets",
		Short: "Manage static assets in the object store",
	}
	cmd.AddCommand(newAssetsPushCmd())
	return cmd
}

func newAssetsPushCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "push [dir]",
		Short: "Upload a directory of static assets to MinIO",
		Long: `Upload every file under dir (default assets.dir) to the configured
MinIO bucket. Object keys are paths relative to dir.`,
		Args: cobra.MaximumNArgs(1),
		RunE: runAssetsPush,
	}
	config.RegisterFlags(cmd.Flags())
	return cmd
}

func runAssetsPush(cmd *cobra.Command, args []string) error {
	cfg, err := config.Load(configFile, cmd.Flags())
	if err != nil {
		return err
	}
	if !cfg.MinioEnabled() {
		return oops.Code("CONFIG_INVALID").Errorf("minio.endpoint is required to push assets")
	}
	dir := cfg.Assets.Dir
	if len(args) == 1 {
		dir = args[0]
	}

	ctx, stop := signalContext(cmd)
	defer stop()

	bucket, err := openBucket(ctx, cfg)
	if err != nil {
		return err
	}
	n, err := pushDir(ctx, bucket, dir)
	if err != nil {
		return err
	}
	cmd.Printf("Uploaded %d files to %s\n", n, cfg.Minio.Bucket)
	return nil
}

// pushDir uploads every regular file under dir and returns how many were
// stored.
func pushDir(ctx context.Context, dst uploader, dir string) (int, error) {
	count := 0
	err := filepath.WalkDir(dir, func(p string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if !d.Type().IsRegular() {
			return nil
		}
		rel, err := filepath.Rel(dir, p)
		if err != nil {
			return err
		}
		data, err := os.ReadFile(p)
		if err != nil {
			return err
		}
		key := filepath.ToSlash(rel)
		if err := dst.Upload(ctx, key, data, mime.TypeByExtension(path.Ext(key))); err != nil {
			return err
		}
		count++
		return nil
	})
	if err != nil {
		return count, oops.Code("ASSETS_PUSH_FAILED").With("dir", dir).Wrap(err)
	}
	return count, nil
}

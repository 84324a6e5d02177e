package main

import (
	"context"
	"fmt"
	"net/url"
	"path/filepath"
	"strings"

	qrcode "github.com/skip2/go-qrcode"
	"github.com/spf13/cobra"

	"github.com/ivlev/sequencer/internal/config"
	"github.com/ivlev/sequencer/internal/engine"
	"github.com/ivlev/sequencer/internal/store"
)

var (
	shareOut  string
	shareSize int
)

var storeCmd = &cobra.Command{
	Use:   "store",
	Short: "Manage timelines in the configured store",
	Long:  "Manage timelines in the configured store (file, sql, redis or minio, see store.kind).",
}

var storeListCmd = &cobra.Command{
	Use:   "list",
	Short: "List stored timelines",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		st, err := store.New(cmd.Context(), cfg.Store, log)
		if err != nil {
			return err
		}
		defer st.Close()
		infos, err := st.List(cmd.Context())
		if err != nil {
			return err
		}
		fmt.Printf("[*] %d timelines in %s store\n", len(infos), cfg.Store.Kind)
		for _, info := range infos {
			fmt.Printf("  %-32s %8d B  %s\n", info.Name, info.Size, info.Modified.Format("2006-01-02 15:04:05"))
		}
		return nil
	},
}

var storeGetCmd = &cobra.Command{
	Use:   "get <name> <file>",
	Short: "Copy a stored timeline to a file",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		return withStoreSession(cmd.Context(), func(s *engine.Session) error {
			if err := s.Open(cmd.Context(), args[0]); err != nil {
				return err
			}
			if err := s.SaveFile(args[1]); err != nil {
				return err
			}
			fmt.Printf("[+] %s -> %s\n", args[0], args[1])
			return nil
		})
	},
}

var storePutCmd = &cobra.Command{
	Use:   "put <file> [name]",
	Short: "Store a timeline file",
	Long:  "Store a timeline file. The name defaults to the file name without extension. Legacy files are stored in the current format version.",
	Args:  cobra.RangeArgs(1, 2),
	RunE: func(cmd *cobra.Command, args []string) error {
		name := strings.TrimSuffix(filepath.Base(args[0]), filepath.Ext(args[0]))
		if len(args) == 2 {
			name = args[1]
		}
		return withStoreSession(cmd.Context(), func(s *engine.Session) error {
			if err := s.OpenFile(args[0]); err != nil {
				return err
			}
			if err := s.Commit(cmd.Context(), name); err != nil {
				return err
			}
			fmt.Printf("[+] %s -> %s\n", args[0], name)
			return nil
		})
	},
}

var storeDeleteCmd = &cobra.Command{
	Use:   "delete <name>...",
	Short: "Delete stored timelines",
	Args:  cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		st, err := store.New(cmd.Context(), cfg.Store, log)
		if err != nil {
			return err
		}
		defer st.Close()
		for _, name := range args {
			if err := st.Delete(cmd.Context(), name); err != nil {
				return fmt.Errorf("%s: %w", name, err)
			}
			fmt.Printf("[+] Deleted %s\n", name)
		}
		return nil
	},
}

var storeShareCmd = &cobra.Command{
	Use:   "share <name>",
	Short: "Write a QR code pointing at a stored timeline",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		st, err := store.New(cmd.Context(), cfg.Store, log)
		if err != nil {
			return err
		}
		defer st.Close()
		// Only share what is actually there.
		if _, err := st.Get(cmd.Context(), args[0]); err != nil {
			return err
		}

		link, err := shareLink(cfg.Store, args[0])
		if err != nil {
			return err
		}
		out := shareOut
		if out == "" {
			out = args[0] + "_qr.png"
		}
		if err := qrcode.WriteFile(link, qrcode.Medium, shareSize, out); err != nil {
			return fmt.Errorf("write qr code: %w", err)
		}
		fmt.Printf("[+] %s\n[+] QR code: %s\n", link, out)
		return nil
	},
}

// shareLink returns the location of a stored timeline for the configured
// store kind.
func shareLink(sc config.StoreConfig, name string) (string, error) {
	if err := store.ValidateName(name); err != nil {
		return "", err
	}
	switch sc.Kind {
	case "file", "":
		abs, err := filepath.Abs(filepath.Join(sc.Dir, name+store.Ext))
		if err != nil {
			return "", err
		}
		return (&url.URL{Scheme: "file", Path: filepath.ToSlash(abs)}).String(), nil
	case "minio":
		scheme := "http"
		if sc.MinioSSL {
			scheme = "https"
		}
		return (&url.URL{Scheme: scheme, Host: sc.MinioEndpoint, Path: "/" + sc.MinioBucket + "/" + name + store.Ext}).String(), nil
	case "redis":
		return (&url.URL{Scheme: "redis", Host: sc.RedisAddr, Path: fmt.Sprintf("/%d", sc.RedisDB), Fragment: sc.RedisPrefix + "tl:" + name}).String(), nil
	case "sql":
		return (&url.URL{Scheme: "sqlite", Opaque: sc.DSN, Fragment: name}).String(), nil
	}
	return "", fmt.Errorf("unknown store kind %q", sc.Kind)
}

func withStoreSession(ctx context.Context, fn func(s *engine.Session) error) error {
	s, err := newSession(ctx, true)
	if err != nil {
		return err
	}
	defer s.Close()
	return fn(s)
}

func init() {
	storeShareCmd.Flags().StringVarP(&shareOut, "output", "o", "", "PNG file (<name>_qr.png when empty)")
	storeShareCmd.Flags().IntVar(&shareSize, "size", 256, "image size in pixels")
	storeCmd.AddCommand(storeListCmd, storeGetCmd, storePutCmd, storeDeleteCmd, storeShareCmd)
}

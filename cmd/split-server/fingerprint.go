/*
Copyright (c) 2025 Odd Kin <oddkin@oddkin.co>

Permission is hereby granted, free of charge, to any person obtaining a copy
of this software and associated documentation files (the "Software"), to deal
in the Software without restriction, including without limitation the rights
to use, copy, modify, merge, publish, distribute, sublicense, and/or sell
copies of the Software, and to permit persons to whom the Software is
furnished to do so, subject to the following conditions:

The above copyright notice and this permission notice shall be included in all
copies or substantial portions of the Software.

THE SOFTWARE IS PROVIDED "AS IS", WITHOUT WARRANTY OF ANY KIND, EXPRESS OR
IMPLIED, INCLUDING BUT NOT LIMITED TO THE WARRANTIES OF MERCHANTABILITY,
FITNESS FOR A PARTICULAR PURPOSE AND NONINFRINGEMENT. IN NO EVENT SHALL THE
AUTHORS OR COPYRIGHT HOLDERS BE LIABLE FOR ANY CLAIM, DAMAGES OR OTHER
LIABILITY, WHETHER IN AN ACTION OF CONTRACT, TORT OR OTHERWISE, ARISING FROM,
OUT OF OR IN CONNECTION WITH THE SOFTWARE OR THE USE OR OTHER DEALINGS IN THE
SOFTWARE.
*/

package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/oddkinco/local-split-server/internal/artifact"
)

func newFingerprintCmd() *cobra.Command {
	var (
		keystorePath  string
		storePassword string
		alias         string
	)

	cmd := &cobra.Command{
		Use:   "fingerprint",
		Short: "Print the signing fingerprint clients must send as the signature parameter",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			fingerprint, err := artifact.FingerprintFromFile(keystorePath, storePassword, alias)
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), fingerprint)
			return nil
		},
	}

	cmd.Flags().StringVar(&keystorePath, "keystore", "", "path to a JKS or PKCS#12 keystore")
	cmd.Flags().StringVar(&storePassword, "store-pass", "", "keystore password")
	cmd.Flags().StringVar(&alias, "alias", "", "key alias (ignored for PKCS#12)")
	_ = cmd.MarkFlagRequired("keystore")
	_ = cmd.MarkFlagRequired("store-pass")

	return cmd
}

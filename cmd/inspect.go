/*
Copyright © 2020 NAME HERE <EMAIL ADDRESS>

Licensed under the Apache License, Version 2.0 (the "License");
you may not use this file except in compliance with the License.
You may obtain a copy of the License at

	http://www.apache.org/licenses/LICENSE-2.0

Unless required by applicable law or agreed to in writing, software
distributed under the License is distributed on an "AS IS" BASIS,
WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
See the License for the specific language governing permissions and
limitations under the License.
*/
package cmd

import (
	"fmt"

	"github.com/pkg/errors"
	"github.com/spf13/cobra"

	"github.com/notargets/gobethe/gf"
	"github.com/notargets/gobethe/selfconsistency"
	"github.com/notargets/gobethe/storage"
)

// InspectCmd represents the inspect command
var InspectCmd = &cobra.Command{
	Use:   "inspect",
	Short: "Print the densities and chemical potential of an archived loop",
	RunE: func(cmd *cobra.Command, args []string) (err error) {
		var (
			ins *Inspection
		)
		path, _ := cmd.Flags().GetString("archive")
		offset, _ := cmd.Flags().GetInt("offset")
		if ins, err = Inspect(path, offset); err != nil {
			return
		}
		fmt.Printf("[%d]\t\t\t= Completed loops\n", ins.Completed)
		fmt.Printf("%s\t= Mesh\n", ins.GLoc.Mesh())
		fmt.Printf("Chemical potential:\n%s", ins.Mu)
		printDensities(ins.GLoc)
		return
	},
}

func init() {
	rootCmd.AddCommand(InspectCmd)
	InspectCmd.Flags().StringP("archive", "a", "", "LevelDB archive directory")
	InspectCmd.Flags().IntP("offset", "o", -1, "loop number, or -1 for the most recent loop, -2 for the one before...")
}

type Inspection struct {
	Completed int
	GLoc      *gf.BlockMesh
	Mu        *gf.BlockMatrix
}

func Inspect(path string, offset int) (ins *Inspection, err error) {
	var (
		a *storage.LevelDB
	)
	if path == "" {
		return nil, errors.New("must supply an archive (-a, --archive)")
	}
	if a, err = storage.OpenLevelDB(path); err != nil {
		return
	}
	defer a.Close()
	ins = &Inspection{GLoc: &gf.BlockMesh{}}
	if ins.Completed, err = a.CompletedLoops(); err != nil {
		return nil, err
	}
	if err = a.Load(selfconsistency.GLocName, offset, ins.GLoc); err != nil {
		return nil, err
	}
	if ins.Mu, err = a.LoadMu(offset); err != nil {
		return nil, err
	}
	return
}

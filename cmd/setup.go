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
	"os"

	"github.com/pkg/errors"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/notargets/gobethe/InputParameters"
	"github.com/notargets/gobethe/setups"
)

const exampleFile = `
########################################
Title: "Plaquette"
Setup: plaquette-bethe # one of the registered setups
Beta: 30.
Mu: 0.
U: 2.
TBethe: 1.
NIw: 1025
Hoppings:
  TNN: 0.25
  TNNN: 0.
########################################
`

// SetupCmd represents the setup command
var SetupCmd = &cobra.Command{
	Use:   "setup",
	Short: "Build a DMFT setup from an input file and print its containers",
	Long: `Build a DMFT setup from an input file and print its containers

Known setups: ` + fmt.Sprint(setups.Names()),
	RunE: func(cmd *cobra.Command, args []string) (err error) {
		var (
			ip *InputParameters.InputParametersDMFT
			st *setups.Setup
		)
		icFile, _ := cmd.Flags().GetString("inputConditionsFile")
		if ip, err = processInput(icFile); err != nil {
			return
		}
		ip.Print()
		if st, err = buildSetup(ip); err != nil {
			return
		}
		st.Print()
		return
	},
}

func init() {
	rootCmd.AddCommand(SetupCmd)
	SetupCmd.Flags().StringP("inputConditionsFile", "I", "", "YAML file for input parameters like:\n\t- Setup\n\t- Beta, Mu, U, TBethe")
}

func processInput(icFile string) (ip *InputParameters.InputParametersDMFT, err error) {
	var data []byte
	if len(icFile) == 0 {
		fmt.Printf("Example File:%s\n", exampleFile)
		return nil, errors.New("must supply an input parameters file (-I, --inputConditionsFile)")
	}
	if data, err = os.ReadFile(icFile); err != nil {
		return
	}
	ip = &InputParameters.InputParametersDMFT{}
	if err = ip.Parse(data); err != nil {
		return nil, errors.Wrapf(err, "parsing %s", icFile)
	}
	return
}

// buildSetup builds the setup, the --parallel flag applies when the input
// does not set Parallel.
func buildSetup(ip *InputParameters.InputParametersDMFT) (st *setups.Setup, err error) {
	if ip.Parallel == 0 {
		ip.Parallel = viper.GetInt("parallel")
	}
	return ip.NewSetup()
}

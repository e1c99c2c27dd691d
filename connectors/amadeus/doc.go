// Copyright 2025 AxonFlow
// SPDX-License-Identifier: BUSL-1.1
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

/*
Package amadeus provides the Amadeus Travel API connector for AxonFlow.

# Overview

This is the Community stub for the Amadeus connector. The full implementation
with flight search, hotel booking, and travel APIs is available in the
Enterprise edition.

# Community Limitations

The Community version of this connector returns ErrEnterpriseFeature for all
operations. To use the Amadeus connector, upgrade to AxonFlow Enterprise.

# Enterprise Features

The Enterprise edition supports:

  - Flight search (FlightOffersSearch)
  - Flight price confirmation
  - Flight booking
  - Hotel search
  - Hotel booking
  - Points of interest
  - Travel recommendations

# Contact

For Enterprise licensing: sales@getaxonflow.com
For documentation: https://docs.getaxonflow.com/connectors/amadeus
*/
package amadeus
